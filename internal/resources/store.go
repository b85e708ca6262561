// Package resources reads room and staff occupancy from Postgres.
package resources

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/medspa-availability/internal/availability"
	"github.com/wolfman30/medspa-availability/internal/catalog"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements availability.ResourceProvider. A room or staff member is
// busy when a scheduled reservation assigned to it overlaps [at, at+duration).
type Store struct {
	db DB
}

var _ availability.ResourceProvider = (*Store)(nil)

// NewStore creates a resource store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("resources: db required")
	}
	return &Store{db: db}
}

// overlap matches a scheduled reservation x intersecting [$2, $3).
const overlap = `x.status = 'scheduled'
	AND x.starts_at < $3
	AND x.starts_at + make_interval(mins => x.duration_minutes) > $2`

// AvailableRooms lists active rooms free for the window that satisfy
// capability, in room ID order.
func (s *Store) AvailableRooms(ctx context.Context, clinicID string, at time.Time, durationMinutes int, capability availability.Capability) ([]availability.Room, error) {
	end := at.Add(time.Duration(durationMinutes) * time.Minute)
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.name, r.capabilities
		FROM rooms r
		WHERE r.clinic_id = $1
		  AND r.active
		  AND ($4 = '' OR $4 = ANY (r.capabilities))
		  AND NOT EXISTS (
			SELECT 1 FROM reservations x
			WHERE x.clinic_id = r.clinic_id AND x.room_id = r.id AND `+overlap+`)
		ORDER BY r.id`, clinicID, at, end, string(capability))
	if err != nil {
		return nil, fmt.Errorf("resources: query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []availability.Room
	for rows.Next() {
		var (
			room availability.Room
			caps []string
		)
		if err := rows.Scan(&room.ID, &room.Name, &caps); err != nil {
			return nil, fmt.Errorf("resources: scan room: %w", err)
		}
		for _, c := range caps {
			room.Capabilities = append(room.Capabilities, catalog.Capability(c))
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resources: query rooms: %w", err)
	}
	return rooms, nil
}

// AdjacentRoomPairs lists adjacency pairs where both rooms are free.
func (s *Store) AdjacentRoomPairs(ctx context.Context, clinicID string, at time.Time, durationMinutes int) ([]availability.RoomPair, error) {
	free, err := s.AvailableRooms(ctx, clinicID, at, durationMinutes, catalog.CapabilityAny)
	if err != nil {
		return nil, err
	}
	if len(free) < 2 {
		return nil, nil
	}
	byID := make(map[string]availability.Room, len(free))
	for _, r := range free {
		byID[r.ID] = r
	}

	rows, err := s.db.Query(ctx, `
		SELECT room_a, room_b
		FROM room_adjacency
		WHERE clinic_id = $1
		ORDER BY room_a, room_b`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("resources: query adjacency: %w", err)
	}
	defer rows.Close()

	var pairs []availability.RoomPair
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("resources: scan adjacency: %w", err)
		}
		first, okA := byID[a]
		second, okB := byID[b]
		if okA && okB && a != b {
			pairs = append(pairs, availability.RoomPair{First: first, Second: second})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resources: query adjacency: %w", err)
	}
	return pairs, nil
}

// AvailableStaff lists active staff with no overlapping reservation.
func (s *Store) AvailableStaff(ctx context.Context, clinicID string, at time.Time, durationMinutes int) ([]availability.Staff, error) {
	end := at.Add(time.Duration(durationMinutes) * time.Minute)
	rows, err := s.db.Query(ctx, `
		SELECT st.id, st.name, st.active
		FROM staff st
		WHERE st.clinic_id = $1
		  AND st.active
		  AND NOT EXISTS (
			SELECT 1 FROM reservations x
			WHERE x.clinic_id = st.clinic_id AND x.staff_id = st.id AND `+overlap+`)
		ORDER BY st.id`, clinicID, at, end)
	if err != nil {
		return nil, fmt.Errorf("resources: query staff: %w", err)
	}
	defer rows.Close()

	var staff []availability.Staff
	for rows.Next() {
		var st availability.Staff
		if err := rows.Scan(&st.ID, &st.Name, &st.Active); err != nil {
			return nil, fmt.Errorf("resources: scan staff: %w", err)
		}
		staff = append(staff, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resources: query staff: %w", err)
	}
	return staff, nil
}

// Booking is an occupied interval in the clinic.
type Booking struct {
	Start           time.Time
	DurationMinutes int
}

// End returns the exclusive end of the booking.
func (b Booking) End() time.Time {
	return b.Start.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// ScheduledBetween lists scheduled reservations overlapping [from, to).
func (s *Store) ScheduledBetween(ctx context.Context, clinicID string, from, to time.Time) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT x.starts_at, x.duration_minutes
		FROM reservations x
		WHERE x.clinic_id = $1 AND `+overlap+`
		ORDER BY x.starts_at`, clinicID, from, to)
	if err != nil {
		return nil, fmt.Errorf("resources: query occupancy: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.Start, &b.DurationMinutes); err != nil {
			return nil, fmt.Errorf("resources: scan occupancy: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resources: query occupancy: %w", err)
	}
	return out, nil
}
