package bookings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-availability/internal/tenancy"
	"github.com/wolfman30/medspa-availability/internal/validation"
)

func postCommit(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(tenancy.ClinicHeader, "clinic-1")
	rec := httptest.NewRecorder()
	tenancy.RequireClinicID(h.Routes()).ServeHTTP(rec, req)
	return rec
}

func TestHandler_CommitCreated(t *testing.T) {
	hs := newHarness(t, validResult())
	h := NewHandler(hs.service, nil)

	hs.mock.ExpectBegin()
	hs.mock.ExpectQuery("INSERT INTO reservations").
		WithArgs(pgxmock.AnyArg(), "clinic-1", "p-1", "m-a", "Botox",
			time.Date(2024, 6, 10, 10, 0, 0, 0, jst), 30, "", "staff-1", "JST").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	hs.mock.ExpectExec("INSERT INTO outbox").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	hs.mock.ExpectCommit()

	rec := postCommit(t, h, `{"patient_id":"p-1","menu_id":"m-a","datetime":"2024-06-10T10:00","staff_id":"staff-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res CommitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.Reservation)
	assert.Equal(t, "staff-1", res.Reservation.StaffID)
	assert.NoError(t, hs.mock.ExpectationsWereMet())
}

func TestHandler_CommitStatuses(t *testing.T) {
	invalid := &validation.Result{
		Menu:   botox,
		Errors: []validation.Issue{{Type: validation.TypeSameDayConstraint}},
	}
	hs := newHarness(t, invalid)
	h := NewHandler(hs.service, nil)

	hs.mock.ExpectBegin()
	hs.mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "booking.rejected.v1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	hs.mock.ExpectCommit()

	rec := postCommit(t, h, `{"patient_id":"p-1","menu_id":"m-a","datetime":"2024-06-10T10:00"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var res CommitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.Validation)
	assert.Equal(t, validation.TypeSameDayConstraint, res.Validation.Errors[0].Type)

	require.NoError(t, hs.mr.Set("booking:lock:clinic-1:p-1:2024-06-10", "other"))
	rec = postCommit(t, h, `{"patient_id":"p-1","menu_id":"m-a","datetime":"2024-06-10T10:00"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postCommit(t, h, `{"patient_id":"p-1","menu_id":"m-a"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postCommit(t, h, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
