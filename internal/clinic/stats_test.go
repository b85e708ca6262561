package clinic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/wolfman30/medspa-availability/internal/tenancy"
)

func TestStatsRepository_GetStats_AllTime(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	clinicID := "clinic-123"

	mock.ExpectQuery(`FROM reservations WHERE clinic_id = \$1`).
		WithArgs(clinicID).
		WillReturnRows(pgxmock.NewRows([]string{"scheduled", "completed", "cancelled", "no_show"}).
			AddRow(int64(12), int64(40), int64(5), int64(2)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM booking_audit_events WHERE clinic_id = \$1 AND event_type = 'booking.rejected'`).
		WithArgs(clinicID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	repo := NewStatsRepositoryWithDB(mock)
	stats, err := repo.GetStats(context.Background(), clinicID, nil, nil)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}

	if stats.ClinicID != clinicID {
		t.Errorf("ClinicID = %q, want %q", stats.ClinicID, clinicID)
	}
	if stats.Scheduled != 12 || stats.Completed != 40 || stats.Cancelled != 5 || stats.NoShow != 2 {
		t.Errorf("unexpected status counts %+v", stats)
	}
	if stats.Rejected != 7 {
		t.Errorf("Rejected = %d, want 7", stats.Rejected)
	}
	if stats.PeriodStart != "all-time" {
		t.Errorf("PeriodStart = %q, want 'all-time'", stats.PeriodStart)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestStatsRepository_GetStats_WithTimeRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	clinicID := "clinic-123"
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM reservations WHERE clinic_id = \$1 AND starts_at >= \$2 AND starts_at < \$3`).
		WithArgs(clinicID, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"scheduled", "completed", "cancelled", "no_show"}).
			AddRow(int64(1), int64(2), int64(3), int64(4)))
	mock.ExpectQuery(`booking_audit_events .* AND created_at >= \$2 AND created_at < \$3`).
		WithArgs(clinicID, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

	repo := NewStatsRepositoryWithDB(mock)
	stats, err := repo.GetStats(context.Background(), clinicID, &start, &end)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.PeriodStart != "2024-06-01T00:00:00Z" {
		t.Errorf("PeriodStart = %q", stats.PeriodStart)
	}
	if stats.NoShow != 4 {
		t.Errorf("NoShow = %d, want 4", stats.NoShow)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestStatsHandler_RequiresBothBounds(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()
	h := NewStatsHandler(NewStatsRepositoryWithDB(mock), nil)

	req := httptest.NewRequest(http.MethodGet, "/stats?start=2024-06-01T00:00:00Z", nil)
	req = req.WithContext(tenancy.WithClinicID(req.Context(), "clinic-1"))
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestStatsHandler_ReturnsJSON(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()
	mock.ExpectQuery(`FROM reservations`).
		WithArgs("clinic-1").
		WillReturnRows(pgxmock.NewRows([]string{"scheduled", "completed", "cancelled", "no_show"}).
			AddRow(int64(3), int64(0), int64(0), int64(0)))
	mock.ExpectQuery(`booking_audit_events`).
		WithArgs("clinic-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

	h := NewStatsHandler(NewStatsRepositoryWithDB(mock), nil)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req = req.WithContext(tenancy.WithClinicID(req.Context(), "clinic-1"))
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Scheduled != 3 || stats.Rejected != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
