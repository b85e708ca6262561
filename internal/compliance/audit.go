// Package compliance keeps an append-only audit log of booking decisions.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AuditEventType represents the type of booking audit event.
type AuditEventType string

const (
	// EventBookingCommitted is logged when a reservation is written.
	EventBookingCommitted AuditEventType = "booking.committed"
	// EventBookingRejected is logged when commit-time validation fails.
	EventBookingRejected AuditEventType = "booking.rejected"
	// EventBookingConflict is logged when a concurrent booking wins the slot.
	EventBookingConflict AuditEventType = "booking.conflict"
)

// AuditEvent represents an immutable audit record.
type AuditEvent struct {
	ID            string          `json:"id"`
	EventType     AuditEventType  `json:"event_type"`
	ClinicID      string          `json:"clinic_id"`
	PatientID     string          `json:"patient_id"`
	ReservationID string          `json:"reservation_id,omitempty"`
	MenuID        string          `json:"menu_id,omitempty"`
	CandidateAt   time.Time       `json:"candidate_at"`
	ErrorTypes    []string        `json:"error_types,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AuditService handles booking audit logging.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records an audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.ErrorTypes == nil {
		event.ErrorTypes = []string{}
	}

	query := `
		INSERT INTO booking_audit_events (
			id, event_type, clinic_id, patient_id, reservation_id,
			menu_id, candidate_at, error_types, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.ClinicID,
		event.PatientID,
		nullString(event.ReservationID),
		nullString(event.MenuID),
		event.CandidateAt,
		pq.Array(event.ErrorTypes),
		nullJSON(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

// LogCommitted logs a written reservation.
func (s *AuditService) LogCommitted(ctx context.Context, clinicID, patientID, reservationID, menuID string, at time.Time) error {
	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventBookingCommitted,
		ClinicID:      clinicID,
		PatientID:     patientID,
		ReservationID: reservationID,
		MenuID:        menuID,
		CandidateAt:   at,
	})
}

// LogRejected logs a booking blocked by validation, with the failing checks.
func (s *AuditService) LogRejected(ctx context.Context, clinicID, patientID, menuID string, at time.Time, errorTypes []string, details any) error {
	detailsJSON, _ := json.Marshal(details)
	return s.LogEvent(ctx, AuditEvent{
		EventType:   EventBookingRejected,
		ClinicID:    clinicID,
		PatientID:   patientID,
		MenuID:      menuID,
		CandidateAt: at,
		ErrorTypes:  errorTypes,
		Details:     detailsJSON,
	})
}

// LogConflict logs a booking that lost a race for its slot.
func (s *AuditService) LogConflict(ctx context.Context, clinicID, patientID, menuID string, at time.Time, reason string) error {
	detailsJSON, _ := json.Marshal(map[string]string{"reason": reason})
	return s.LogEvent(ctx, AuditEvent{
		EventType:   EventBookingConflict,
		ClinicID:    clinicID,
		PatientID:   patientID,
		MenuID:      menuID,
		CandidateAt: at,
		Details:     detailsJSON,
	})
}

// QueryEvents retrieves audit events with filters.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, clinic_id, patient_id, reservation_id,
			   menu_id, candidate_at, error_types, details, created_at
		FROM booking_audit_events
		WHERE clinic_id = $1
	`
	args := []interface{}{filter.ClinicID}
	argIdx := 2

	if filter.PatientID != "" {
		query += fmt.Sprintf(" AND patient_id = $%d", argIdx)
		args = append(args, filter.PatientID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var reservationID, menuID sql.NullString
		var details []byte
		err := rows.Scan(
			&e.ID, &e.EventType, &e.ClinicID, &e.PatientID, &reservationID,
			&menuID, &e.CandidateAt, pq.Array(&e.ErrorTypes), &details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.ReservationID = reservationID.String
		e.MenuID = menuID.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to read audit events: %w", err)
	}

	return events, nil
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	ClinicID  string
	PatientID string
	EventType AuditEventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullJSON(b json.RawMessage) any {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return []byte(b)
}
