package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/medspa-availability/internal/events"
)

const defaultDurationMinutes = 30

// Reservation is a committed booking row.
type Reservation struct {
	ID              string    `json:"id"`
	ClinicID        string    `json:"clinic_id"`
	PatientID       string    `json:"patient_id"`
	MenuID          string    `json:"menu_id,omitempty"`
	MenuName        string    `json:"menu_name"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	RoomID          string    `json:"room_id,omitempty"`
	StaffID         string    `json:"staff_id,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// DB is the subset of pgxpool used by the repository.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository writes reservations with a compare-and-insert.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by pgx.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("bookings: db required")
	}
	return &Repository{db: db}
}

// The row is written only while the patient has no other live reservation
// for the same menu on the same local day and the requested room and staff
// are free for the whole duration.
const insertReservationSQL = `
	INSERT INTO reservations (
		id, clinic_id, patient_id, menu_id, menu_name, starts_at,
		duration_minutes, status, room_id, staff_id
	)
	SELECT $1, $2, $3, $4, $5, $6, $7, 'scheduled', NULLIF($8, ''), NULLIF($9, '')
	WHERE NOT EXISTS (
		SELECT 1 FROM reservations x
		WHERE x.clinic_id = $2
		  AND x.patient_id = $3
		  AND x.status IN ('scheduled', 'completed')
		  AND CASE WHEN x.menu_id <> '' AND $4 <> ''
		           THEN x.menu_id = $4
		           ELSE lower(x.menu_name) = lower($5) END
		  AND (x.starts_at AT TIME ZONE $10)::date = ($6::timestamptz AT TIME ZONE $10)::date
	)
	AND NOT EXISTS (
		SELECT 1 FROM reservations x
		WHERE x.clinic_id = $2
		  AND x.status = 'scheduled'
		  AND (($8 <> '' AND x.room_id = $8) OR ($9 <> '' AND x.staff_id = $9))
		  AND x.starts_at < $6::timestamptz + make_interval(mins => $7)
		  AND x.starts_at + make_interval(mins => x.duration_minutes) > $6
	)
	RETURNING created_at
`

// Insert writes res and appends its booking.committed event to the outbox in
// the same transaction. Zero inserted rows returns ErrSlotNoLongerAvailable.
func (r *Repository) Insert(ctx context.Context, res Reservation, loc *time.Location) (*Reservation, error) {
	if loc == nil {
		loc = time.UTC
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.DurationMinutes <= 0 {
		res.DurationMinutes = defaultDurationMinutes
	}
	res.Status = "scheduled"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("bookings: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, insertReservationSQL,
		res.ID, res.ClinicID, res.PatientID, res.MenuID, res.MenuName, res.StartsAt,
		res.DurationMinutes, res.RoomID, res.StaffID, loc.String(),
	).Scan(&res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNoLongerAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: insert reservation: %w", err)
	}

	_, err = events.Append(ctx, tx, events.BookingCommittedV1{
		ReservationID:   res.ID,
		ClinicID:        res.ClinicID,
		PatientID:       res.PatientID,
		MenuID:          res.MenuID,
		MenuName:        res.MenuName,
		StartsAt:        res.StartsAt,
		DurationMinutes: res.DurationMinutes,
		RoomID:          res.RoomID,
		StaffID:         res.StaffID,
		CommittedAt:     res.CreatedAt,
	}, events.OccurredAt(res.CreatedAt), events.CorrelatedWith(res.ID))
	if err != nil {
		return nil, fmt.Errorf("bookings: append event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("bookings: commit tx: %w", err)
	}
	return &res, nil
}

// RecordRejection appends a booking.rejected event on its own transaction.
func (r *Repository) RecordRejection(ctx context.Context, evt events.BookingRejectedV1) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("bookings: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := events.Append(ctx, tx, evt, events.OccurredAt(evt.RejectedAt)); err != nil {
		return fmt.Errorf("bookings: append rejection: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("bookings: commit tx: %w", err)
	}
	return nil
}
