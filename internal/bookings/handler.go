package bookings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/medspa-availability/internal/availability"
	"github.com/wolfman30/medspa-availability/internal/tenancy"
	"github.com/wolfman30/medspa-availability/internal/validation"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

// Handler exposes the commit path over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a bookings HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi router with the commit route.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Commit)
	return r
}

// Commit handles POST requests that book one reservation.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var body validation.Body
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	clinicID, _ := tenancy.ClinicIDFromContext(r.Context())
	loc, err := h.service.validator.Location(r.Context(), clinicID)
	if err != nil {
		availability.WriteError(w, h.logger, err)
		return
	}
	req, err := body.Request(clinicID, loc)
	if err != nil {
		availability.WriteError(w, h.logger, err)
		return
	}

	res, err := h.service.Commit(r.Context(), CommitRequest{Request: req, RoomID: body.RoomID, StaffID: body.StaffID})
	switch {
	case err == nil:
		availability.WriteJSON(w, h.logger, http.StatusCreated, res)
	case errors.Is(err, ErrConstraintViolation):
		availability.WriteJSON(w, h.logger, http.StatusUnprocessableEntity, res)
	case HTTPStatus(err) == http.StatusConflict:
		availability.WriteJSON(w, h.logger, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		availability.WriteError(w, h.logger, err)
	}
}
