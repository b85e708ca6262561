// Package clinic provides clinic-specific configuration: timezone, opening
// hours, and how many bookings the clinic can run at once.
package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/medspa-availability/internal/availability"
)

// DayHours represents the opening hours for a single day.
// Nil means the clinic is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "10:00" in 24-hour format
	Close string `json:"close"` // "19:00" in 24-hour format
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// Config holds clinic-specific configuration.
type Config struct {
	ClinicID      string        `json:"clinic_id"`
	Name          string        `json:"name"`
	Timezone      string        `json:"timezone"` // e.g., "Asia/Tokyo"
	BusinessHours BusinessHours `json:"business_hours"`
	// Capacity is how many reservations may overlap at any instant.
	Capacity int `json:"capacity"`
	// SlotGranularityMinutes overrides the service-wide default when set.
	// A granularity on the request still wins.
	SlotGranularityMinutes int `json:"slot_granularity_minutes,omitempty"`
	// Locale selects message language: "ja" or "en". Empty falls back to
	// DISPLAY_LOCALE.
	Locale string `json:"locale,omitempty"`
}

// DefaultTimezone is used when a clinic has none configured.
const DefaultTimezone = "Asia/Tokyo"

// DefaultConfig returns a sensible default configuration.
func DefaultConfig(clinicID string) *Config {
	return &Config{
		ClinicID: clinicID,
		Name:     "Clinic",
		Timezone: DefaultTimezone,
		BusinessHours: BusinessHours{
			Monday:    &DayHours{Open: "10:00", Close: "19:00"},
			Tuesday:   &DayHours{Open: "10:00", Close: "19:00"},
			Wednesday: nil, // Closed
			Thursday:  &DayHours{Open: "10:00", Close: "19:00"},
			Friday:    &DayHours{Open: "10:00", Close: "19:00"},
			Saturday:  &DayHours{Open: "10:00", Close: "18:00"},
			Sunday:    &DayHours{Open: "10:00", Close: "18:00"},
		},
		Capacity: 2,
	}
}

// Location loads the clinic timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Settings is the view of c the availability core reads. The grid, the
// resolver and the commit path all take the clinic calendar from here.
func (c *Config) Settings() availability.ClinicSettings {
	return availability.ClinicSettings{
		Location:           c.Location(),
		GranularityMinutes: c.SlotGranularityMinutes,
		Locale:             c.Locale,
	}
}

// GetHoursForDay returns the hours for a given weekday (0=Sunday, 6=Saturday).
func (b *BusinessHours) GetHoursForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return b.Sunday
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	default:
		return nil
	}
}

// HasAnyHours returns true if at least one day has business hours configured.
func (b *BusinessHours) HasAnyHours() bool {
	return b.Sunday != nil || b.Monday != nil || b.Tuesday != nil ||
		b.Wednesday != nil || b.Thursday != nil || b.Friday != nil || b.Saturday != nil
}

// Window returns the open and close instants for the calendar day of t in
// the clinic timezone. ok is false when the clinic is closed that day or the
// hours cannot be parsed.
func (c *Config) Window(t time.Time) (open, close time.Time, ok bool) {
	loc := c.Location()
	local := t.In(loc)
	hours := c.BusinessHours.GetHoursForDay(local.Weekday())
	if hours == nil {
		return time.Time{}, time.Time{}, false
	}
	openTime, err := time.Parse("15:04", hours.Open)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	closeTime, err := time.Parse("15:04", hours.Close)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := local.Date()
	open = time.Date(y, m, d, openTime.Hour(), openTime.Minute(), 0, 0, loc)
	close = time.Date(y, m, d, closeTime.Hour(), closeTime.Minute(), 0, 0, loc)
	if !open.Before(close) {
		return time.Time{}, time.Time{}, false
	}
	return open, close, true
}

// IsOpenAt checks if the clinic is open at the given time.
func (c *Config) IsOpenAt(t time.Time) bool {
	open, close, ok := c.Window(t)
	if !ok {
		return false
	}
	return !t.Before(open) && t.Before(close)
}

// Validate rejects configurations the slot grid cannot use.
func (c *Config) Validate() error {
	if c.ClinicID == "" {
		return errors.New("clinic: clinic_id required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("clinic: invalid timezone %q: %w", c.Timezone, err)
	}
	if c.Capacity < 1 {
		return fmt.Errorf("clinic: capacity must be at least 1, got %d", c.Capacity)
	}
	if c.SlotGranularityMinutes < 0 {
		return fmt.Errorf("clinic: slot granularity must not be negative")
	}
	for _, day := range []*DayHours{
		c.BusinessHours.Monday, c.BusinessHours.Tuesday, c.BusinessHours.Wednesday,
		c.BusinessHours.Thursday, c.BusinessHours.Friday, c.BusinessHours.Saturday, c.BusinessHours.Sunday,
	} {
		if day == nil {
			continue
		}
		open, err := time.Parse("15:04", day.Open)
		if err != nil {
			return fmt.Errorf("clinic: invalid open time %q", day.Open)
		}
		close, err := time.Parse("15:04", day.Close)
		if err != nil {
			return fmt.Errorf("clinic: invalid close time %q", day.Close)
		}
		if !open.Before(close) {
			return fmt.Errorf("clinic: open %s is not before close %s", day.Open, day.Close)
		}
	}
	return nil
}

// Store provides persistence for clinic configurations.
type Store struct {
	redis           *redis.Client
	defaultTimezone string
}

var _ availability.SettingsSource = (*Store)(nil)

// NewStore creates a new clinic config store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient, defaultTimezone: DefaultTimezone}
}

// WithDefaultTimezone sets the zone for clinics that have none configured.
// An invalid name is ignored.
func (s *Store) WithDefaultTimezone(tz string) *Store {
	if _, err := time.LoadLocation(tz); err == nil && tz != "" {
		s.defaultTimezone = tz
	}
	return s
}

func (s *Store) key(clinicID string) string {
	return fmt.Sprintf("clinic:config:%s", clinicID)
}

// Get retrieves clinic config, returning default if not found.
func (s *Store) Get(ctx context.Context, clinicID string) (*Config, error) {
	data, err := s.redis.Get(ctx, s.key(clinicID)).Bytes()
	if err == redis.Nil {
		cfg := DefaultConfig(clinicID)
		cfg.Timezone = s.defaultTimezone
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: get config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("clinic: unmarshal config: %w", err)
	}
	if cfg.Timezone == "" {
		cfg.Timezone = s.defaultTimezone
	}

	return &cfg, nil
}

// Settings implements availability.SettingsSource.
func (s *Store) Settings(ctx context.Context, clinicID string) (availability.ClinicSettings, error) {
	cfg, err := s.Get(ctx, clinicID)
	if err != nil {
		return availability.ClinicSettings{}, err
	}
	return cfg.Settings(), nil
}

// Set saves clinic config.
func (s *Store) Set(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("clinic: marshal config: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(cfg.ClinicID), data, 0).Err(); err != nil {
		return fmt.Errorf("clinic: set config: %w", err)
	}

	return nil
}
