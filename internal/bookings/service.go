// Package bookings commits reservations after re-validating them under a
// per-patient lock.
package bookings

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medspa-availability/internal/events"
	"github.com/wolfman30/medspa-availability/internal/observability/metrics"
	"github.com/wolfman30/medspa-availability/internal/validation"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

var bookingsTracer = otel.Tracer("medspa.internal.bookings")

// Validator re-checks a candidate booking.
type Validator interface {
	ValidateReservation(ctx context.Context, req validation.Request) (*validation.Result, error)
	Location(ctx context.Context, clinicID string) (*time.Location, error)
}

// Auditor records booking decisions.
type Auditor interface {
	LogCommitted(ctx context.Context, clinicID, patientID, reservationID, menuID string, at time.Time) error
	LogRejected(ctx context.Context, clinicID, patientID, menuID string, at time.Time, errorTypes []string, details any) error
	LogConflict(ctx context.Context, clinicID, patientID, menuID string, at time.Time, reason string) error
}

// CommitRequest is a validation request plus the resources to hold.
type CommitRequest struct {
	validation.Request
	RoomID  string `json:"room_id,omitempty"`
	StaffID string `json:"staff_id,omitempty"`
}

// CommitResult carries the written reservation, or the validation result
// that blocked it.
type CommitResult struct {
	Reservation *Reservation       `json:"reservation,omitempty"`
	Validation  *validation.Result `json:"validation,omitempty"`
}

// Service commits bookings.
type Service struct {
	repo      *Repository
	locker    *Locker
	validator Validator
	audit     Auditor
	metrics   *metrics.AvailabilityMetrics
	logger    *logging.Logger
}

// NewService constructs a bookings service. audit and m may be nil.
func NewService(repo *Repository, locker *Locker, validator Validator, audit Auditor, m *metrics.AvailabilityMetrics, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if locker == nil {
		panic("bookings: locker required")
	}
	if validator == nil {
		panic("bookings: validator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, locker: locker, validator: validator, audit: audit, metrics: m, logger: logger}
}

// Commit locks the patient's day, re-validates, and writes the reservation.
// A failed validation returns ErrConstraintViolation with the result set.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("medspa.clinic_id", req.ClinicID),
		attribute.String("medspa.patient_id", req.PatientID),
		attribute.String("medspa.menu", req.Menu.String()),
	)

	res, outcome, err := s.commit(ctx, req)
	s.metrics.ObserveCommit(outcome)
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}

func (s *Service) commit(ctx context.Context, req CommitRequest) (*CommitResult, string, error) {
	loc, err := s.validator.Location(ctx, req.ClinicID)
	if err != nil {
		return nil, "error", err
	}
	lock, err := s.locker.Acquire(ctx, LockKey(req.ClinicID, req.PatientID, req.Datetime, loc))
	if errors.Is(err, ErrBookingInProgress) {
		s.logger.Info("booking lock held", "clinic_id", req.ClinicID, "patient_id", req.PatientID)
		return nil, "in_progress", err
	}
	if err != nil {
		return nil, "error", err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release booking lock", "error", err, "patient_id", req.PatientID)
		}
	}()

	result, err := s.validator.ValidateReservation(ctx, req.Request)
	if err != nil {
		return nil, "error", err
	}
	menuID := result.Menu.ID
	if !result.IsValid {
		s.logAudit(ctx, "rejected", s.auditRejected(ctx, req, menuID, result))
		if err := s.repo.RecordRejection(ctx, events.BookingRejectedV1{
			ClinicID:   req.ClinicID,
			PatientID:  req.PatientID,
			MenuID:     menuID,
			MenuName:   result.Menu.Name,
			StartsAt:   req.Datetime,
			ErrorTypes: result.ErrorTypes(),
			RejectedAt: time.Now().UTC(),
		}); err != nil {
			s.logger.Error("failed to record booking rejection", "error", err, "patient_id", req.PatientID)
		}
		return &CommitResult{Validation: result}, "rejected", ErrConstraintViolation
	}

	written, err := s.repo.Insert(ctx, Reservation{
		ClinicID:        req.ClinicID,
		PatientID:       req.PatientID,
		MenuID:          menuID,
		MenuName:        result.Menu.Name,
		StartsAt:        req.Datetime,
		DurationMinutes: result.Menu.DurationMinutes,
		RoomID:          req.RoomID,
		StaffID:         req.StaffID,
	}, loc)
	if errors.Is(err, ErrSlotNoLongerAvailable) {
		if s.audit != nil {
			s.logAudit(ctx, "conflict", s.audit.LogConflict(ctx, req.ClinicID, req.PatientID, menuID, req.Datetime, "slot_taken"))
		}
		return &CommitResult{Validation: result}, "conflict", err
	}
	if err != nil {
		return nil, "error", err
	}

	if s.audit != nil {
		s.logAudit(ctx, "committed", s.audit.LogCommitted(ctx, req.ClinicID, req.PatientID, written.ID, menuID, req.Datetime))
	}
	s.logger.Info("booking committed",
		"clinic_id", req.ClinicID,
		"patient_id", req.PatientID,
		"reservation_id", written.ID,
		"menu", result.Menu.Label(),
	)
	return &CommitResult{Reservation: written, Validation: result}, "committed", nil
}

func (s *Service) auditRejected(ctx context.Context, req CommitRequest, menuID string, result *validation.Result) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.LogRejected(ctx, req.ClinicID, req.PatientID, menuID, req.Datetime, result.ErrorTypes(), result.Errors)
}

func (s *Service) logAudit(_ context.Context, kind string, err error) {
	if err != nil {
		s.logger.Error("failed to write booking audit event", "error", err, "kind", kind)
	}
}
