package availability

import (
	"context"
	"time"

	"github.com/wolfman30/medspa-availability/internal/catalog"
)

// VacancySource supplies raw candidate slots for a menu.
type VacancySource interface {
	GetSlots(ctx context.Context, clinicID string, menu catalog.Menu, from, to time.Time, granularityMinutes int) ([]Slot, error)
}

// HistoryProvider supplies a patient's reservations: every non-cancelled
// future record plus completed records on or after since. Cancelled and
// no-show records should be excluded by the provider; the core filters them
// again regardless.
type HistoryProvider interface {
	GetHistory(ctx context.Context, clinicID, patientID string, since time.Time) ([]HistoryRecord, error)
}

// ResourceProvider supplies room and staff occupancy.
type ResourceProvider interface {
	AvailableRooms(ctx context.Context, clinicID string, at time.Time, durationMinutes int, capability Capability) ([]Room, error)
	AdjacentRoomPairs(ctx context.Context, clinicID string, at time.Time, durationMinutes int) ([]RoomPair, error)
	AvailableStaff(ctx context.Context, clinicID string, at time.Time, durationMinutes int) ([]Staff, error)
}

// ClinicSettings carries the per-clinic values that shape calendar-day
// comparisons, the slot grid, and message language. Zero fields fall back to
// the service-wide defaults.
type ClinicSettings struct {
	Location           *time.Location
	GranularityMinutes int
	Locale             string
}

// WithDefaults fills every zero field from def.
func (s ClinicSettings) WithDefaults(def ClinicSettings) ClinicSettings {
	if s.Location == nil {
		s.Location = def.Location
	}
	if s.GranularityMinutes <= 0 {
		s.GranularityMinutes = def.GranularityMinutes
	}
	if s.Locale == "" {
		s.Locale = def.Locale
	}
	return s
}

// SettingsSource supplies ClinicSettings. The clinic configuration store is
// the production implementation, and it also drives the vacancy grid, so
// both sides of a query see the same clinic calendar.
type SettingsSource interface {
	Settings(ctx context.Context, clinicID string) (ClinicSettings, error)
}

// StaticSettings serves the same settings for every clinic.
type StaticSettings ClinicSettings

// Settings implements SettingsSource.
func (s StaticSettings) Settings(context.Context, string) (ClinicSettings, error) {
	return ClinicSettings(s), nil
}
