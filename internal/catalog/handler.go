package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/medspa-availability/internal/interval"
	"github.com/wolfman30/medspa-availability/internal/tenancy"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

// Handler serves interval matrix diagnostics.
type Handler struct {
	source          Source
	implausibleDays int
	locale          interval.Locale
	logger          *logging.Logger
}

// NewHandler creates a matrix diagnostics handler.
func NewHandler(source Source, implausibleDays int, locale interval.Locale, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{source: source, implausibleDays: implausibleDays, locale: locale, logger: logger}
}

// Routes returns a chi router with the diagnostics routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/quality", h.Quality)
	r.Get("/lookup", h.Lookup)
	r.Post("/refresh", h.Refresh)
	return r
}

// Invalidator drops cached reference data for a clinic.
type Invalidator interface {
	Invalidate(ctx context.Context, clinicID string) error
}

// Refresh drops the clinic's cached snapshot so the next request reloads
// menus and the matrix from the database.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.source.(Invalidator)
	if !ok {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "not_cached"})
		return
	}
	clinicID, _ := tenancy.ClinicIDFromContext(r.Context())
	if err := inv.Invalidate(r.Context(), clinicID); err != nil {
		h.logger.Error("failed to invalidate catalog snapshot", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error":"failed to refresh catalog"}`, http.StatusInternalServerError)
		return
	}
	h.logger.Info("catalog snapshot invalidated", "clinic_id", clinicID)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// Quality reports matrix cells that failed to parse or look implausible.
func (h *Handler) Quality(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, snap.Quality(h.implausibleDays))
}

// LookupResponse is the body returned by Lookup.
type LookupResponse struct {
	From    Menu   `json:"from"`
	To      Menu   `json:"to"`
	Days    int    `json:"days"`
	Display string `json:"display"`
}

// Lookup returns the required interval between two menus, given by ID or name.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	fromRaw := strings.TrimSpace(r.URL.Query().Get("from"))
	toRaw := strings.TrimSpace(r.URL.Query().Get("to"))
	if fromRaw == "" || toRaw == "" {
		http.Error(w, `{"error":"from and to are required"}`, http.StatusBadRequest)
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	from, err := snap.Menus.Resolve(MenuRef{ID: fromRaw, Name: fromRaw})
	if err != nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	to, err := snap.Menus.Resolve(MenuRef{ID: toRaw, Name: toRaw})
	if err != nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	days := snap.Matrix.Lookup(from, to)
	h.writeJSON(w, http.StatusOK, LookupResponse{
		From:    from,
		To:      to,
		Days:    days,
		Display: interval.FormatLocale(days, h.locale),
	})
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*Snapshot, bool) {
	clinicID, _ := tenancy.ClinicIDFromContext(r.Context())
	snap, err := h.source.Snapshot(r.Context(), clinicID)
	if err == nil && snap == nil {
		err = errors.New("catalog: no snapshot")
	}
	if err != nil {
		h.logger.Error("failed to load catalog snapshot", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error":"catalog unavailable"}`, http.StatusServiceUnavailable)
		return nil, false
	}
	return snap, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
