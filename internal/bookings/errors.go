package bookings

import (
	"errors"
	"net/http"

	"github.com/wolfman30/medspa-availability/internal/availability"
)

var (
	// ErrBookingInProgress means another commit holds the patient's lock for that day.
	ErrBookingInProgress = errors.New("bookings: another booking for this patient and day is in progress")
	// ErrSlotNoLongerAvailable means the conditional insert matched no row.
	ErrSlotNoLongerAvailable = errors.New("bookings: slot no longer available")
	// ErrConstraintViolation means commit-time validation reported errors.
	ErrConstraintViolation = errors.New("bookings: constraint violation")
)

// HTTPStatus maps commit errors to response codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrBookingInProgress), errors.Is(err, ErrSlotNoLongerAvailable):
		return http.StatusConflict
	case errors.Is(err, ErrConstraintViolation):
		return http.StatusUnprocessableEntity
	default:
		return availability.HTTPStatus(err)
	}
}
