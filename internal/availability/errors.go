package availability

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/wolfman30/medspa-availability/internal/catalog"
)

// Input errors fail fast and are never degraded into empty results.
var (
	ErrInvalidRequest   = errors.New("availability: invalid request")
	ErrInvalidDateRange = errors.New("availability: invalid date range")
	ErrMenuNotFound     = catalog.ErrMenuNotFound
	ErrPatientNotFound  = errors.New("availability: patient not found")
)

// ErrNoCommonAvailability reports that at least one party member has no
// slot the others share.
var ErrNoCommonAvailability = errors.New("availability: no common availability")

// ErrSourceUnavailable matches any collaborator failure. It is never
// returned for a rule violation.
var ErrSourceUnavailable = errors.New("availability: could not determine availability")

// SourceError wraps a failed or timed-out collaborator call.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("availability: %s source failed: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrSourceUnavailable) match any SourceError.
func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

func sourceError(source string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPatientNotFound) {
		return err
	}
	return &SourceError{Source: source, Err: err}
}

// HTTPStatus maps resolver errors onto response codes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMenuNotFound), errors.Is(err, ErrPatientNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidDateRange):
		return http.StatusBadRequest
	case errors.Is(err, ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
