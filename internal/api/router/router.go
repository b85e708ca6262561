package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/medspa-availability/internal/availability"
	"github.com/wolfman30/medspa-availability/internal/bookings"
	"github.com/wolfman30/medspa-availability/internal/catalog"
	"github.com/wolfman30/medspa-availability/internal/clinic"
	"github.com/wolfman30/medspa-availability/internal/compliance"
	httpmiddleware "github.com/wolfman30/medspa-availability/internal/http/middleware"
	"github.com/wolfman30/medspa-availability/internal/tenancy"
	"github.com/wolfman30/medspa-availability/internal/validation"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AvailabilityHandler *availability.Handler
	ValidationHandler   *validation.Handler
	BookingsHandler     *bookings.Handler
	CatalogHandler      *catalog.Handler
	ClinicHandler       *clinic.Handler
	ClinicStatsHandler  *clinic.StatsHandler
	AuditHandler        *compliance.Handler
	AdminToken          string
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
	HealthChecks        map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Clinic-scoped API routes
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(tenancy.RequireClinicID)

		if cfg.AvailabilityHandler != nil {
			v1.Mount("/availability", cfg.AvailabilityHandler.Routes())
		}
		v1.Route("/reservations", func(res chi.Router) {
			if cfg.ValidationHandler != nil {
				res.Post("/validate", cfg.ValidationHandler.Validate)
			}
			if cfg.BookingsHandler != nil {
				res.Post("/", cfg.BookingsHandler.Commit)
			}
		})
		if cfg.CatalogHandler != nil {
			v1.Route("/interval-matrix", func(m chi.Router) {
				m.Get("/quality", cfg.CatalogHandler.Quality)
				m.Get("/lookup", cfg.CatalogHandler.Lookup)
				m.With(requireAdminToken(cfg.AdminToken)).Post("/refresh", cfg.CatalogHandler.Refresh)
			})
		}
		v1.Route("/clinic", func(c chi.Router) {
			if cfg.ClinicHandler != nil {
				c.Get("/config", cfg.ClinicHandler.GetConfig)
				c.With(requireAdminToken(cfg.AdminToken)).Put("/config", cfg.ClinicHandler.UpdateConfig)
			}
			if cfg.ClinicStatsHandler != nil {
				c.Get("/stats", cfg.ClinicStatsHandler.GetStats)
			}
		})
		if cfg.AuditHandler != nil {
			v1.With(requireAdminToken(cfg.AdminToken)).Mount("/audit", cfg.AuditHandler.Routes())
		}
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		resp := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				resp["status"] = "degraded"
				resp[name] = err.Error()
				continue
			}
			resp[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
