package events

import "time"

// BookingCommittedV1 is emitted once a reservation row is written.
type BookingCommittedV1 struct {
	ReservationID   string    `json:"reservation_id"`
	ClinicID        string    `json:"clinic_id"`
	PatientID       string    `json:"patient_id"`
	MenuID          string    `json:"menu_id,omitempty"`
	MenuName        string    `json:"menu_name"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	RoomID          string    `json:"room_id,omitempty"`
	StaffID         string    `json:"staff_id,omitempty"`
	CommittedAt     time.Time `json:"committed_at"`
}

func (BookingCommittedV1) EventType() string { return "booking.committed.v1" }
func (e BookingCommittedV1) Clinic() string { return e.ClinicID }
func (e BookingCommittedV1) AggregateKey() string {
	return ReservationAggregate(e.ClinicID, e.ReservationID)
}

// BookingRejectedV1 is emitted when commit-time validation blocks a booking.
type BookingRejectedV1 struct {
	ClinicID   string    `json:"clinic_id"`
	PatientID  string    `json:"patient_id"`
	MenuID     string    `json:"menu_id,omitempty"`
	MenuName   string    `json:"menu_name"`
	StartsAt   time.Time `json:"starts_at"`
	ErrorTypes []string  `json:"error_types"`
	RejectedAt time.Time `json:"rejected_at"`
}

func (BookingRejectedV1) EventType() string { return "booking.rejected.v1" }
func (e BookingRejectedV1) Clinic() string { return e.ClinicID }
func (e BookingRejectedV1) AggregateKey() string {
	return PatientAggregate(e.ClinicID, e.PatientID)
}

// ReservationAggregate names the aggregate a reservation event belongs to.
func ReservationAggregate(clinicID, reservationID string) string {
	return "clinic:" + clinicID + ":reservation:" + reservationID
}

// PatientAggregate names the aggregate for events without a reservation row.
func PatientAggregate(clinicID, patientID string) string {
	return "clinic:" + clinicID + ":patient:" + patientID
}
