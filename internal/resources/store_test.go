package resources

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-availability/internal/availability"
	"github.com/wolfman30/medspa-availability/internal/catalog"
)

var slotStart = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func roomRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "name", "capabilities"}).
		AddRow("room-1", "Room 1", []string{"treatment"}).
		AddRow("room-2", "Room 2", []string{"treatment", "iv"}).
		AddRow("room-4", "Room 4", []string{})
}

func TestAvailableRooms(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM rooms r`).
		WithArgs("clinic-1", slotStart, slotStart.Add(45*time.Minute), "iv").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "capabilities"}).
			AddRow("room-2", "Room 2", []string{"treatment", "iv"}))

	rooms, err := NewStore(mock).AvailableRooms(context.Background(), "clinic-1", slotStart, 45, catalog.CapabilityIV)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, []availability.Capability{catalog.CapabilityTreatment, catalog.CapabilityIV}, rooms[0].Capabilities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjacentRoomPairs_SkipsPairsWithABusyRoom(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM rooms r`).
		WithArgs("clinic-1", slotStart, slotStart.Add(60*time.Minute), "").
		WillReturnRows(roomRows())
	// room-3 is busy, so 2-3 and 3-4 cannot be used; 1-4 are free but not adjacent.
	mock.ExpectQuery(`FROM room_adjacency`).
		WithArgs("clinic-1").
		WillReturnRows(pgxmock.NewRows([]string{"room_a", "room_b"}).
			AddRow("room-1", "room-2").
			AddRow("room-2", "room-3").
			AddRow("room-3", "room-4"))

	pairs, err := NewStore(mock).AdjacentRoomPairs(context.Background(), "clinic-1", slotStart, 60)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "room-1", pairs[0].First.ID)
	assert.Equal(t, "room-2", pairs[0].Second.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjacentRoomPairs_FewerThanTwoFreeRooms(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM rooms r`).
		WithArgs("clinic-1", slotStart, slotStart.Add(30*time.Minute), "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "capabilities"}).AddRow("room-1", "Room 1", []string{}))

	pairs, err := NewStore(mock).AdjacentRoomPairs(context.Background(), "clinic-1", slotStart, 30)
	require.NoError(t, err)
	assert.Empty(t, pairs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailableStaff(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM staff st`).
		WithArgs("clinic-1", slotStart, slotStart.Add(30*time.Minute)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "active"}).
			AddRow("s-1", "Dr. Sato", true).
			AddRow("s-2", "Nurse Kato", true))

	staff, err := NewStore(mock).AvailableStaff(context.Background(), "clinic-1", slotStart, 30)
	require.NoError(t, err)
	assert.Equal(t, []availability.Staff{{ID: "s-1", Name: "Dr. Sato", Active: true}, {ID: "s-2", Name: "Nurse Kato", Active: true}}, staff)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledBetween(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	to := slotStart.Add(24 * time.Hour)
	mock.ExpectQuery(`SELECT x.starts_at, x.duration_minutes`).
		WithArgs("clinic-1", slotStart, to).
		WillReturnRows(pgxmock.NewRows([]string{"starts_at", "duration_minutes"}).AddRow(slotStart, 90))

	got, err := NewStore(mock).ScheduledBetween(context.Background(), "clinic-1", slotStart, to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, slotStart.Add(90*time.Minute), got[0].End())
	assert.NoError(t, mock.ExpectationsWereMet())
}
