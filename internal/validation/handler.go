package validation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/medspa-availability/internal/availability"
	"github.com/wolfman30/medspa-availability/internal/catalog"
	"github.com/wolfman30/medspa-availability/internal/tenancy"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

// Handler exposes the validator over HTTP.
type Handler struct {
	validator *Validator
	logger    *logging.Logger
}

// NewHandler creates a new validation HTTP handler.
func NewHandler(validator *Validator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{validator: validator, logger: logger}
}

// Routes returns a chi router with the validation route.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Validate)
	return r
}

// Body is the JSON body shared by the validate and commit endpoints.
type Body struct {
	PatientID string `json:"patient_id"`
	MenuID    string `json:"menu_id,omitempty"`
	MenuName  string `json:"menu_name,omitempty"`
	Datetime  string `json:"datetime"`
	PartySize int    `json:"party_size,omitempty"`
	Pair      bool   `json:"pair_booking,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
	StaffID   string `json:"staff_id,omitempty"`
}

// Request converts the body into a validation request. Datetimes without
// an offset are read in loc.
func (b Body) Request(clinicID string, loc *time.Location) (Request, error) {
	raw := strings.TrimSpace(b.Datetime)
	if raw == "" {
		return Request{}, fmt.Errorf("%w: datetime is required", availability.ErrInvalidRequest)
	}
	dt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		dt, err = time.ParseInLocation("2006-01-02T15:04", raw, loc)
		if err != nil {
			return Request{}, fmt.Errorf("%w: datetime %q", availability.ErrInvalidRequest, raw)
		}
	}
	return Request{
		ClinicID:  clinicID,
		PatientID: b.PatientID,
		Menu:      catalog.MenuRef{ID: b.MenuID, Name: b.MenuName},
		Datetime:  dt,
		PartySize: b.PartySize,
		Pair:      b.Pair,
	}, nil
}

// Validate handles POST /v1/reservations/validate. A failed validation is
// 422 with the itemized result.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	clinicID, _ := tenancy.ClinicIDFromContext(r.Context())
	var body Body
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	loc, err := h.validator.Location(r.Context(), clinicID)
	if err != nil {
		availability.WriteError(w, h.logger, err)
		return
	}
	req, err := body.Request(clinicID, loc)
	if err != nil {
		availability.WriteError(w, h.logger, err)
		return
	}
	res, err := h.validator.ValidateReservation(r.Context(), req)
	if err != nil {
		availability.WriteError(w, h.logger, err)
		return
	}
	status := http.StatusOK
	if !res.IsValid {
		status = http.StatusUnprocessableEntity
	}
	availability.WriteJSON(w, h.logger, status, res)
}
