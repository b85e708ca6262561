package availability

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/medspa-availability/internal/catalog"
	"github.com/wolfman30/medspa-availability/internal/tenancy"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

// Handler exposes availability resolution over HTTP.
type Handler struct {
	resolver *Resolver
	logger   *logging.Logger
}

// NewHandler creates a new availability HTTP handler.
func NewHandler(resolver *Resolver, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{resolver: resolver, logger: logger}
}

// Routes returns a chi router with the availability routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.ResolveSingle)
	r.Post("/party", h.ResolveMultiParty)
	return r
}

// SingleBody is the JSON body for POST /v1/availability.
type SingleBody struct {
	PatientID           string `json:"patient_id"`
	MenuID              string `json:"menu_id,omitempty"`
	MenuName            string `json:"menu_name,omitempty"`
	From                string `json:"from"`
	To                  string `json:"to"`
	GranularityMinutes  int    `json:"granularity_minutes,omitempty"`
	HistoryWindowMonths int    `json:"history_window_months,omitempty"`
	WithRooms           bool   `json:"with_rooms,omitempty"`
}

// PartyBody is the JSON body for POST /v1/availability/party.
type PartyBody struct {
	Members []struct {
		PatientID string `json:"patient_id"`
		MenuID    string `json:"menu_id,omitempty"`
		MenuName  string `json:"menu_name,omitempty"`
	} `json:"members"`
	From                string `json:"from"`
	To                  string `json:"to"`
	GranularityMinutes  int    `json:"granularity_minutes,omitempty"`
	HistoryWindowMonths int    `json:"history_window_months,omitempty"`
	PairBooking         bool   `json:"pair_booking,omitempty"`
}

// ResolveSingle handles POST /v1/availability.
func (h *Handler) ResolveSingle(w http.ResponseWriter, r *http.Request) {
	clinicID, _ := tenancy.ClinicIDFromContext(r.Context())
	var body SingleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	settings, err := h.resolver.Settings(r.Context(), clinicID)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	rng, err := ParseDateRange(body.From, body.To, settings.Location)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	res, err := h.resolver.ResolveSingle(r.Context(), SingleRequest{
		ClinicID:            clinicID,
		PatientID:           body.PatientID,
		Menu:                catalog.MenuRef{ID: body.MenuID, Name: body.MenuName},
		Range:               rng,
		GranularityMinutes:  body.GranularityMinutes,
		HistoryWindowMonths: body.HistoryWindowMonths,
		WithRooms:           body.WithRooms,
	})
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, h.logger, http.StatusOK, res)
}

// ResolveMultiParty handles POST /v1/availability/party.
func (h *Handler) ResolveMultiParty(w http.ResponseWriter, r *http.Request) {
	clinicID, _ := tenancy.ClinicIDFromContext(r.Context())
	var body PartyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	settings, err := h.resolver.Settings(r.Context(), clinicID)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	rng, err := ParseDateRange(body.From, body.To, settings.Location)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	req := MultiPartyRequest{
		ClinicID:            clinicID,
		Range:               rng,
		GranularityMinutes:  body.GranularityMinutes,
		HistoryWindowMonths: body.HistoryWindowMonths,
		PairBooking:         body.PairBooking,
	}
	for _, m := range body.Members {
		req.Members = append(req.Members, PartyMember{
			PatientID: m.PatientID,
			Menu:      catalog.MenuRef{ID: m.MenuID, Name: m.MenuName},
		})
	}
	res, err := h.resolver.ResolveMultiParty(r.Context(), req)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, h.logger, http.StatusOK, res)
}

// ParseDateRange accepts RFC 3339 timestamps or YYYY-MM-DD dates. A bare
// "to" date is inclusive, so it extends to the start of the next day.
func ParseDateRange(from, to string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	f, _, err := parseBound(from, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: from: %v", ErrInvalidDateRange, err)
	}
	t, dateOnly, err := parseBound(to, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: to: %v", ErrInvalidDateRange, err)
	}
	if dateOnly {
		t = t.AddDate(0, 0, 1)
	}
	rng := DateRange{From: f, To: t}
	if err := validateRange(rng); err != nil {
		return DateRange{}, err
	}
	return rng, nil
}

func parseBound(s string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, errors.New("required")
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is neither a date nor an RFC 3339 time", s)
	}
	return t.In(loc), false, nil
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, logger *logging.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteError maps err onto a status code and a JSON error body.
func WriteError(w http.ResponseWriter, logger *logging.Logger, err error) {
	status := HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("availability request failed", "status", status, "error", err)
		if errors.Is(err, ErrSourceUnavailable) {
			msg = ErrSourceUnavailable.Error()
		} else {
			msg = "internal server error"
		}
	}
	WriteJSON(w, logger, status, map[string]string{"error": msg})
}
