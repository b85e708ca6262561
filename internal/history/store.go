// Package history reads patient reservation history from Postgres.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/medspa-availability/internal/availability"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements availability.HistoryProvider over the reservations table.
type Store struct {
	db     DB
	logger *logging.Logger
}

var _ availability.HistoryProvider = (*Store)(nil)

// NewStore creates a history store.
func NewStore(db DB, logger *logging.Logger) *Store {
	if db == nil {
		panic("history: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger}
}

// GetHistory returns the patient's scheduled and completed reservations
// starting on or after since. Cancelled and no-show rows are never returned.
// An unknown patient is ErrPatientNotFound.
func (s *Store) GetHistory(ctx context.Context, clinicID, patientID string, since time.Time) ([]availability.HistoryRecord, error) {
	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE clinic_id = $1 AND id = $2)`,
		clinicID, patientID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("history: check patient: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", availability.ErrPatientNotFound, patientID)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id::text, patient_id, menu_id, menu_name, starts_at, duration_minutes, status
		FROM reservations
		WHERE clinic_id = $1
		  AND patient_id = $2
		  AND status IN ('scheduled', 'completed')
		  AND starts_at >= $3
		ORDER BY starts_at`, clinicID, patientID, since)
	if err != nil {
		return nil, fmt.Errorf("history: query reservations: %w", err)
	}
	defer rows.Close()

	var records []availability.HistoryRecord
	for rows.Next() {
		var (
			r      availability.HistoryRecord
			status string
		)
		if err := rows.Scan(&r.ID, &r.PatientID, &r.MenuID, &r.MenuName, &r.DateTime, &r.DurationMinutes, &status); err != nil {
			return nil, fmt.Errorf("history: scan reservation: %w", err)
		}
		r.Status = availability.ParseStatus(status)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: query reservations: %w", err)
	}

	s.logger.Debug("history loaded", "clinic_id", clinicID, "patient_id", patientID, "records", len(records))
	return records, nil
}
