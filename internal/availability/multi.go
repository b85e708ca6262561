package availability

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/medspa-availability/internal/catalog"
)

// ResolveMultiParty finds slots where every member can be booked at the
// same datetime, then applies pair or group resource rules. A party with no
// common slot is a result with NoCommonAvailability set, not an error.
func (r *Resolver) ResolveMultiParty(ctx context.Context, req MultiPartyRequest) (result *MultiPartyResult, err error) {
	ctx, span := tracer.Start(ctx, "availability.resolve_multi_party")
	defer span.End()
	span.SetAttributes(
		attribute.String("medspa.clinic_id", req.ClinicID),
		attribute.Int("medspa.party_size", req.PartySize()),
		attribute.String("medspa.party_mode", string(req.Mode())),
	)
	defer func() {
		o := outcome(err)
		if err == nil && result.NoCommonAvailability {
			o = "no_common"
		}
		r.metrics.ObserveResolution("multi_party", o)
		if err != nil {
			span.RecordError(err)
		}
	}()

	if req.PartySize() < 2 {
		return nil, fmt.Errorf("%w: a party needs at least 2 members, got %d", ErrInvalidRequest, req.PartySize())
	}
	for _, m := range req.Members {
		if err := validateMember(m.PatientID, m.Menu); err != nil {
			return nil, err
		}
	}
	if err := validateRange(req.Range); err != nil {
		return nil, err
	}
	if r.resources == nil {
		return nil, &SourceError{Source: "resources", Err: fmt.Errorf("no resource provider configured")}
	}

	snap, err := r.snapshot(ctx, req.ClinicID)
	if err != nil {
		return nil, err
	}
	menus := make([]catalog.Menu, len(req.Members))
	for i, m := range req.Members {
		menus[i], err = snap.Menus.Resolve(m.Menu)
		if err != nil {
			return nil, err
		}
	}
	settings, err := r.Settings(ctx, req.ClinicID)
	if err != nil {
		return nil, err
	}

	members := make([]SingleResult, len(req.Members))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range req.Members {
		g.Go(func() error {
			res, err := r.resolveMenu(gctx, snap, settings, menus[i], SingleRequest{
				ClinicID:            req.ClinicID,
				PatientID:           m.PatientID,
				Menu:                m.Menu,
				Range:               req.Range,
				GranularityMinutes:  req.GranularityMinutes,
				HistoryWindowMonths: req.HistoryWindowMonths,
			})
			if err != nil {
				return err
			}
			members[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result = &MultiPartyResult{Mode: req.Mode(), Slots: []Slot{}, Members: members}

	for _, m := range members {
		if m.AvailableCount() == 0 {
			result.BlockingPatientIDs = append(result.BlockingPatientIDs, m.PatientID)
		}
	}
	if len(result.BlockingPatientIDs) > 0 {
		result.NoCommonAvailability = true
		result.Reason = fmt.Sprintf("no available slots for patient(s) %s", joinIDs(result.BlockingPatientIDs))
		r.logger.Info("party has a member with no availability",
			"clinic_id", req.ClinicID,
			"blocking_patient_ids", result.BlockingPatientIDs,
		)
		return result, nil
	}

	common := Intersect(members)
	result.CommonSlots = len(common)
	if len(common) == 0 {
		result.NoCommonAvailability = true
		result.Reason = "no datetime is available to every party member"
		return result, nil
	}

	for _, slot := range common {
		var (
			keep bool
			err  error
		)
		switch result.Mode {
		case ModePair:
			keep, err = r.allocatePair(ctx, req.ClinicID, &slot, menus)
		default:
			keep, err = r.allocateGroup(ctx, req.ClinicID, &slot, menus)
		}
		if err != nil {
			return nil, err
		}
		if keep {
			result.Slots = append(result.Slots, slot)
		} else {
			r.metrics.ObserveRejections(ReasonNoRoom, 1)
		}
	}
	if len(result.Slots) == 0 {
		result.NoCommonAvailability = true
		result.Reason = fmt.Sprintf("no %s room or staff allocation for any common slot", result.Mode)
	}

	r.logger.Debug("multi-party availability resolved",
		"clinic_id", req.ClinicID,
		"party_size", req.PartySize(),
		"mode", string(result.Mode),
		"common", result.CommonSlots,
		"kept", len(result.Slots),
	)
	return result, nil
}

// Intersect keeps the first member's available slots whose exact datetime is
// also available for every other member. The duration of a common slot is
// the longest of the members' durations.
func Intersect(members []SingleResult) []Slot {
	if len(members) == 0 {
		return nil
	}
	others := make([]map[int64]Slot, len(members)-1)
	for i, m := range members[1:] {
		idx := make(map[int64]Slot, len(m.Slots))
		for _, s := range m.Slots {
			if s.Available {
				idx[slotKey(s.DateTime)] = s
			}
		}
		others[i] = idx
	}

	var out []Slot
	seen := map[int64]bool{}
	for _, first := range members[0].Slots {
		if !first.Available {
			continue
		}
		key := slotKey(first.DateTime)
		if seen[key] {
			continue
		}
		slot := NewSlot(first.DateTime, first.DurationMinutes, true)
		ok := true
		for _, idx := range others {
			match, found := idx[key]
			if !found {
				ok = false
				break
			}
			if match.DurationMinutes > slot.DurationMinutes {
				slot.DurationMinutes = match.DurationMinutes
			}
		}
		if ok {
			seen[key] = true
			out = append(out, slot)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out
}

// allocatePair takes the first adjacent pair whose rooms can host both
// members, trying each member in either room.
func (r *Resolver) allocatePair(ctx context.Context, clinicID string, slot *Slot, menus []catalog.Menu) (bool, error) {
	var pairs []RoomPair
	err := r.call(ctx, "resources", func(ctx context.Context) error {
		var err error
		pairs, err = r.resources.AdjacentRoomPairs(ctx, clinicID, slot.DateTime, slot.DurationMinutes)
		return err
	})
	if err != nil {
		return false, err
	}
	a, b := menus[0].RequiredCapability(), menus[1].RequiredCapability()
	for _, pair := range pairs {
		first, second := pair.First, pair.Second
		switch {
		case a.Satisfies(first.Capabilities) && b.Satisfies(second.Capabilities):
		case a.Satisfies(second.Capabilities) && b.Satisfies(first.Capabilities):
			first, second = second, first
		default:
			continue
		}
		slot.RoomPair = &pair
		slot.AllocatedRooms = []Room{first, second}
		return true, nil
	}
	return false, nil
}

// allocateGroup assigns one free room per member, first-fit by the member's
// required capability, and one active staff member per member. Nothing is
// held; the allocation is advisory.
func (r *Resolver) allocateGroup(ctx context.Context, clinicID string, slot *Slot, menus []catalog.Menu) (bool, error) {
	var (
		rooms []Room
		staff []Staff
	)
	err := r.call(ctx, "resources", func(ctx context.Context) error {
		var err error
		rooms, err = r.resources.AvailableRooms(ctx, clinicID, slot.DateTime, slot.DurationMinutes, catalog.CapabilityAny)
		if err != nil {
			return err
		}
		staff, err = r.resources.AvailableStaff(ctx, clinicID, slot.DateTime, slot.DurationMinutes)
		return err
	})
	if err != nil {
		return false, err
	}

	need := len(menus)
	if len(rooms) < need {
		return false, nil
	}
	used := make([]bool, len(rooms))
	allocated := make([]Room, 0, need)
	for _, menu := range menus {
		capability := menu.RequiredCapability()
		found := false
		for i, room := range rooms {
			if used[i] || !capability.Satisfies(room.Capabilities) {
				continue
			}
			used[i] = true
			allocated = append(allocated, room)
			found = true
			break
		}
		if !found {
			return false, nil
		}
	}

	active := make([]Staff, 0, need)
	for _, s := range staff {
		if s.Active {
			active = append(active, s)
			if len(active) == need {
				break
			}
		}
	}
	if len(active) < need {
		return false, nil
	}

	slot.AllocatedRooms = allocated
	slot.AllocatedStaff = active
	return true, nil
}
