// Package availability resolves bookable slots for one patient or a party
// of patients. It applies treatment-interval and same-day rules to raw
// vacancy, then room and staff rules for parties. Resolution is read-only:
// nothing here writes, holds or reserves.
package availability

import (
	"strings"
	"time"

	"github.com/wolfman30/medspa-availability/internal/catalog"
)

// Slot is a candidate bookable unit.
type Slot struct {
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DateTime        time.Time `json:"datetime"`
	DurationMinutes int       `json:"duration_minutes"`
	Available       bool      `json:"available"`

	AvailableRooms []Room    `json:"available_rooms,omitempty"`
	RoomPair       *RoomPair `json:"room_pair,omitempty"`
	AllocatedRooms []Room    `json:"allocated_rooms,omitempty"`
	AllocatedStaff []Staff   `json:"allocated_staff,omitempty"`
}

// NewSlot builds a slot whose date and time fields follow start's location.
func NewSlot(start time.Time, durationMinutes int, available bool) Slot {
	return Slot{
		Date:            start.Format("2006-01-02"),
		Time:            start.Format("15:04"),
		DateTime:        start,
		DurationMinutes: durationMinutes,
		Available:       available,
	}
}

// End returns the exclusive end of the slot.
func (s Slot) End() time.Time {
	return s.DateTime.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// clone copies the slot without sharing annotation slices with the input.
func (s Slot) clone() Slot {
	out := s
	out.AvailableRooms = append([]Room(nil), s.AvailableRooms...)
	out.AllocatedRooms = append([]Room(nil), s.AllocatedRooms...)
	out.AllocatedStaff = append([]Staff(nil), s.AllocatedStaff...)
	if s.RoomPair != nil {
		pair := *s.RoomPair
		out.RoomPair = &pair
	}
	return out
}

// Status is the lifecycle state of a reservation record.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// ParseStatus normalizes stored status strings. Unknown values are kept
// as-is and never participate in constraint checks.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scheduled", "booked", "confirmed":
		return StatusScheduled
	case "completed", "done", "fulfilled":
		return StatusCompleted
	case "cancelled", "canceled":
		return StatusCancelled
	case "no_show", "noshow", "no-show":
		return StatusNoShow
	default:
		return Status(s)
	}
}

// HistoryRecord is one past or upcoming reservation for a patient.
type HistoryRecord struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patient_id"`
	MenuID          string    `json:"menu_id"`
	MenuName        string    `json:"menu_name"`
	DateTime        time.Time `json:"datetime"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Status          Status    `json:"status"`
}

// MenuRef returns the record's menu reference.
func (r HistoryRecord) MenuRef() catalog.MenuRef {
	return catalog.MenuRef{ID: r.MenuID, Name: r.MenuName}
}

// Capability aliases catalog.Capability for room filters.
type Capability = catalog.Capability

// Room is a treatment room.
type Room struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// RoomPair is two physically adjacent rooms.
type RoomPair struct {
	First  Room `json:"first"`
	Second Room `json:"second"`
}

// Staff is a clinician who can perform treatments.
type Staff struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// DateRange is an inclusive-start, exclusive-end time window.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SingleRequest asks for one patient's availability for one menu.
type SingleRequest struct {
	ClinicID            string          `json:"-"`
	PatientID           string          `json:"patient_id"`
	Menu                catalog.MenuRef `json:"menu"`
	Range               DateRange       `json:"range"`
	GranularityMinutes  int             `json:"granularity_minutes,omitempty"`
	HistoryWindowMonths int             `json:"history_window_months,omitempty"`
	WithRooms           bool            `json:"with_rooms,omitempty"`
}

// SingleResult is the filtered slot list for one patient.
type SingleResult struct {
	PatientID  string         `json:"patient_id"`
	Menu       catalog.Menu   `json:"menu"`
	Slots      []Slot         `json:"slots"`
	Considered int            `json:"considered"`
	Rejected   map[string]int `json:"rejected"`
}

// AvailableCount counts slots still marked available.
func (r *SingleResult) AvailableCount() int {
	n := 0
	for _, s := range r.Slots {
		if s.Available {
			n++
		}
	}
	return n
}

// PartyMember is one patient in a multi-party request.
type PartyMember struct {
	PatientID string          `json:"patient_id"`
	Menu      catalog.MenuRef `json:"menu"`
}

// MultiPartyRequest asks for slots where every member can be booked at once.
type MultiPartyRequest struct {
	ClinicID            string        `json:"-"`
	Members             []PartyMember `json:"members"`
	Range               DateRange     `json:"range"`
	GranularityMinutes  int           `json:"granularity_minutes,omitempty"`
	HistoryWindowMonths int           `json:"history_window_months,omitempty"`
	PairBooking         bool          `json:"pair_booking,omitempty"`
}

// PartySize is the number of members.
func (r MultiPartyRequest) PartySize() int {
	return len(r.Members)
}

// PartyMode selects how resources are allocated for a party.
type PartyMode string

const (
	ModePair  PartyMode = "pair"
	ModeGroup PartyMode = "group"
)

// Mode reports pair mode only for exactly two members with the pair flag.
func (r MultiPartyRequest) Mode() PartyMode {
	if r.PartySize() == 2 && r.PairBooking {
		return ModePair
	}
	return ModeGroup
}

// MultiPartyResult is the common, resource-checked slot list for a party.
type MultiPartyResult struct {
	Mode                 PartyMode      `json:"mode"`
	Slots                []Slot         `json:"slots"`
	CommonSlots          int            `json:"common_slots"`
	NoCommonAvailability bool           `json:"no_common_availability"`
	BlockingPatientIDs   []string       `json:"blocking_patient_ids,omitempty"`
	Reason               string         `json:"reason,omitempty"`
	Members              []SingleResult `json:"-"`
}

// Err returns ErrNoCommonAvailability when the party has no common slot.
func (r *MultiPartyResult) Err() error {
	if r != nil && r.NoCommonAvailability {
		return ErrNoCommonAvailability
	}
	return nil
}
