// Package vacancy generates raw candidate slots from clinic opening hours
// and how many reservations the clinic can run at once.
package vacancy

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/medspa-availability/internal/availability"
	"github.com/wolfman30/medspa-availability/internal/catalog"
	"github.com/wolfman30/medspa-availability/internal/clinic"
	"github.com/wolfman30/medspa-availability/internal/resources"
)

const defaultGranularity = 30

// ConfigSource supplies clinic configuration.
type ConfigSource interface {
	Get(ctx context.Context, clinicID string) (*clinic.Config, error)
}

// OccupancySource lists scheduled reservations in a window.
type OccupancySource interface {
	ScheduledBetween(ctx context.Context, clinicID string, from, to time.Time) ([]resources.Booking, error)
}

// GridSource implements availability.VacancySource.
type GridSource struct {
	configs   ConfigSource
	occupancy OccupancySource
	now       func() time.Time
}

var _ availability.VacancySource = (*GridSource)(nil)

// NewGridSource creates a grid source.
func NewGridSource(configs ConfigSource, occupancy OccupancySource) *GridSource {
	return &GridSource{configs: configs, occupancy: occupancy, now: time.Now}
}

// GetSlots walks each clinic-local day in [from, to) and emits every slot
// start, granularity minutes apart, whose full menu duration fits in opening
// hours. Slots where overlapping reservations already reach capacity are
// emitted with Available false. Slots that start before now are skipped.
func (g *GridSource) GetSlots(ctx context.Context, clinicID string, menu catalog.Menu, from, to time.Time, granularity int) ([]availability.Slot, error) {
	cfg, err := g.configs.Get(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("vacancy: load clinic config: %w", err)
	}
	if granularity <= 0 {
		granularity = defaultGranularity
	}
	duration := menu.DurationMinutes
	if duration <= 0 {
		duration = granularity
	}
	capacity := cfg.Capacity
	if capacity < 1 {
		capacity = 1
	}

	booked, err := g.occupancy.ScheduledBetween(ctx, clinicID, from, to)
	if err != nil {
		return nil, fmt.Errorf("vacancy: load occupancy: %w", err)
	}

	loc := cfg.Location()
	now := g.now()
	step := time.Duration(granularity) * time.Minute
	length := time.Duration(duration) * time.Minute

	var slots []availability.Slot
	y, m, d := from.In(loc).Date()
	for day := time.Date(y, m, d, 0, 0, 0, 0, loc); day.Before(to); day = day.AddDate(0, 0, 1) {
		open, close, ok := cfg.Window(day)
		if !ok {
			continue
		}
		for start := open; !start.Add(length).After(close); start = start.Add(step) {
			if start.Before(from) || !start.Before(to) || start.Before(now) {
				continue
			}
			end := start.Add(length)
			busy := 0
			for _, b := range booked {
				if b.Start.Before(end) && b.End().After(start) {
					busy++
				}
			}
			slots = append(slots, availability.NewSlot(start, duration, busy < capacity))
		}
	}
	return slots, nil
}
