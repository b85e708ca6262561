package availability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medspa-availability/internal/catalog"
)

// ResolveSingle returns the slots in req.Range where the patient can book
// req.Menu. Interval and same-day rules always apply; rooms are checked
// when req.WithRooms is set.
func (r *Resolver) ResolveSingle(ctx context.Context, req SingleRequest) (result *SingleResult, err error) {
	ctx, span := tracer.Start(ctx, "availability.resolve_single")
	defer span.End()
	span.SetAttributes(
		attribute.String("medspa.clinic_id", req.ClinicID),
		attribute.String("medspa.patient_id", req.PatientID),
		attribute.String("medspa.menu", req.Menu.String()),
	)
	defer func() {
		r.metrics.ObserveResolution("single", outcome(err))
		if err != nil {
			span.RecordError(err)
		}
	}()

	if err := validateMember(req.PatientID, req.Menu); err != nil {
		return nil, err
	}
	if err := validateRange(req.Range); err != nil {
		return nil, err
	}
	snap, err := r.snapshot(ctx, req.ClinicID)
	if err != nil {
		return nil, err
	}
	menu, err := snap.Menus.Resolve(req.Menu)
	if err != nil {
		return nil, err
	}
	settings, err := r.Settings(ctx, req.ClinicID)
	if err != nil {
		return nil, err
	}
	return r.resolveMenu(ctx, snap, settings, menu, req)
}

// resolveMenu runs the single-patient pipeline against a loaded snapshot.
// A granularity on the request wins over the clinic's.
func (r *Resolver) resolveMenu(ctx context.Context, snap *catalog.Snapshot, settings ClinicSettings, menu catalog.Menu, req SingleRequest) (*SingleResult, error) {
	now := r.now()
	window := req.HistoryWindowMonths
	if window <= 0 {
		window = r.window
	}
	granularity := req.GranularityMinutes
	if granularity <= 0 {
		granularity = settings.GranularityMinutes
	}
	since := now.AddDate(0, -window, 0)

	var records []HistoryRecord
	if err := r.call(ctx, "history", func(ctx context.Context) error {
		var err error
		records, err = r.history.GetHistory(ctx, req.ClinicID, req.PatientID, since)
		return err
	}); err != nil {
		return nil, err
	}

	var raw []Slot
	if err := r.call(ctx, "vacancy", func(ctx context.Context) error {
		var err error
		raw, err = r.vacancy.GetSlots(ctx, req.ClinicID, menu, req.Range.From, req.Range.To, granularity)
		return err
	}); err != nil {
		return nil, err
	}

	cons := NewConstraints(snap, settings.Location, EligibleHistory(records, since, now, settings.Location))
	result := &SingleResult{
		PatientID:  req.PatientID,
		Menu:       menu,
		Slots:      make([]Slot, 0, len(raw)),
		Considered: len(raw),
		Rejected:   map[string]int{},
	}
	capability := menu.RequiredCapability()

	for _, in := range raw {
		slot := in.clone()
		if slot.DurationMinutes <= 0 {
			slot.DurationMinutes = menu.DurationMinutes
		}
		if reason := cons.Check(menu, slot.DateTime); reason != "" {
			result.Rejected[reason]++
			continue
		}
		if req.WithRooms && slot.Available {
			rooms, err := r.roomsFor(ctx, req.ClinicID, slot, capability)
			if err != nil {
				return nil, err
			}
			if len(rooms) == 0 {
				result.Rejected[ReasonNoRoom]++
				continue
			}
			slot.AvailableRooms = rooms
		}
		result.Slots = append(result.Slots, slot)
	}
	sort.SliceStable(result.Slots, func(i, j int) bool {
		return result.Slots[i].DateTime.Before(result.Slots[j].DateTime)
	})

	for reason, n := range result.Rejected {
		r.metrics.ObserveRejections(reason, n)
	}
	r.logger.Debug("single availability resolved",
		"clinic_id", req.ClinicID,
		"patient_id", req.PatientID,
		"menu", menu.Label(),
		"considered", result.Considered,
		"kept", len(result.Slots),
		"history_records", len(records),
	)
	return result, nil
}

func (r *Resolver) roomsFor(ctx context.Context, clinicID string, slot Slot, capability Capability) ([]Room, error) {
	if r.resources == nil {
		return nil, &SourceError{Source: "resources", Err: fmt.Errorf("no resource provider configured")}
	}
	var rooms []Room
	err := r.call(ctx, "resources", func(ctx context.Context) error {
		var err error
		rooms, err = r.resources.AvailableRooms(ctx, clinicID, slot.DateTime, slot.DurationMinutes, capability)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]Room, 0, len(rooms))
	for _, room := range rooms {
		if capability.Satisfies(room.Capabilities) {
			out = append(out, room)
		}
	}
	return out, nil
}

func slotKey(t time.Time) int64 { return t.UnixNano() }

func joinIDs(ids []string) string { return strings.Join(ids, ", ") }
