package compliance

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/medspa-availability/internal/tenancy"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

const maxAuditPageSize = 500

// Handler exposes the booking audit log for the request's clinic.
type Handler struct {
	audit  *AuditService
	logger *logging.Logger
}

// NewHandler creates an audit log HTTP handler.
func NewHandler(audit *AuditService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{audit: audit, logger: logger}
}

// Routes returns a chi router with the audit routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/events", h.ListEvents)
	return r
}

// ListEvents returns audit events newest first.
// GET /v1/audit/events?patient_id=&event_type=&start=&end=&limit=&offset=
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := tenancy.ClinicIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "clinic_id required"}`, http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	filter := AuditFilter{
		ClinicID:  clinicID,
		PatientID: q.Get("patient_id"),
		EventType: AuditEventType(q.Get("event_type")),
		Limit:     100,
	}
	for key, dst := range map[string]*time.Time{"start": &filter.StartTime, "end": &filter.EndTime} {
		if v := q.Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				http.Error(w, `{"error": "invalid `+key+` time, use RFC3339 format"}`, http.StatusBadRequest)
				return
			}
			*dst = t
		}
	}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, `{"error": "invalid `+key+`"}`, http.StatusBadRequest)
				return
			}
			*dst = n
		}
	}
	if filter.Limit == 0 || filter.Limit > maxAuditPageSize {
		filter.Limit = maxAuditPageSize
	}

	events, err := h.audit.QueryEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query audit events", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "failed to query audit events"}`, http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []AuditEvent{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"events": events}); err != nil {
		h.logger.Error("failed to encode audit events", "error", err)
	}
}
