package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/medspa-availability/cmd/mainconfig"
	"github.com/wolfman30/medspa-availability/internal/api/router"
	"github.com/wolfman30/medspa-availability/internal/availability"
	"github.com/wolfman30/medspa-availability/internal/bookings"
	"github.com/wolfman30/medspa-availability/internal/catalog"
	"github.com/wolfman30/medspa-availability/internal/clinic"
	"github.com/wolfman30/medspa-availability/internal/compliance"
	appconfig "github.com/wolfman30/medspa-availability/internal/config"
	"github.com/wolfman30/medspa-availability/internal/events"
	"github.com/wolfman30/medspa-availability/internal/history"
	"github.com/wolfman30/medspa-availability/internal/interval"
	"github.com/wolfman30/medspa-availability/internal/observability/metrics"
	"github.com/wolfman30/medspa-availability/internal/resources"
	"github.com/wolfman30/medspa-availability/internal/vacancy"
	"github.com/wolfman30/medspa-availability/internal/validation"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting medspa availability API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		logger.Error("invalid CLINIC_TIMEZONE", "timezone", cfg.ClinicTimezone, "error", err)
		os.Exit(1)
	}

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := connectRedis(cfg)
	defer redisClient.Close()

	metricsHandler, availabilityMetrics := setupMetrics()

	app, err := buildApp(cfg, loc, pool, redisClient, availabilityMetrics, logger)
	if err != nil {
		logger.Error("failed to wire services", "error", err)
		os.Exit(1)
	}

	deliverer, err := setupEventDelivery(ctx, cfg, pool, logger)
	if err != nil {
		logger.Error("failed to set up booking event delivery", "error", err)
		os.Exit(1)
	}
	go deliverer.Start(ctx)

	r := router.New(&router.Config{
		Logger:              logger,
		AvailabilityHandler: app.availability,
		ValidationHandler:   app.validation,
		BookingsHandler:     app.bookings,
		CatalogHandler:      app.catalog,
		ClinicHandler:       app.clinic,
		ClinicStatsHandler:  app.stats,
		AuditHandler:        app.audit,
		AdminToken:          cfg.AdminToken,
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		HealthChecks: map[string]router.HealthCheck{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type handlers struct {
	availability *availability.Handler
	validation   *validation.Handler
	bookings     *bookings.Handler
	catalog      *catalog.Handler
	clinic       *clinic.Handler
	stats        *clinic.StatsHandler
	audit        *compliance.Handler
}

func buildApp(cfg *appconfig.Config, loc *time.Location, pool *pgxpool.Pool, redisClient *redis.Client, m *metrics.AvailabilityMetrics, logger *logging.Logger) (*handlers, error) {
	locale := interval.ParseLocale(cfg.DisplayLocale)

	snapshots := catalog.NewCachedSource(redisClient, catalog.NewStore(pool, cfg.ImplausibleIntervalDays, logger), cfg.SnapshotCacheTTL, logger)
	historyStore := history.NewStore(pool, logger)
	resourceStore := resources.NewStore(pool)
	clinicStore := clinic.NewStore(redisClient).WithDefaultTimezone(cfg.ClinicTimezone)

	resolver, err := availability.NewResolver(availability.Config{
		Snapshots:           snapshots,
		Vacancy:             vacancy.NewGridSource(clinicStore, resourceStore),
		History:             historyStore,
		Resources:           resourceStore,
		Settings:            clinicStore,
		Logger:              logger,
		Metrics:             m,
		Location:            loc,
		HistoryWindowMonths: cfg.HistoryWindowMonths,
		GranularityMinutes:  cfg.SlotGranularityMinutes,
		CollaboratorTimeout: cfg.CollaboratorTimeout,
	})
	if err != nil {
		return nil, err
	}

	validator, err := validation.NewValidator(validation.Config{
		Snapshots:           snapshots,
		History:             historyStore,
		Settings:            clinicStore,
		Logger:              logger,
		Metrics:             m,
		Location:            loc,
		LookbackYears:       cfg.VisitLookbackYears,
		Locale:              locale,
		CollaboratorTimeout: cfg.CollaboratorTimeout,
	})
	if err != nil {
		return nil, err
	}

	auditService := compliance.NewAuditService(stdlib.OpenDBFromPool(pool))
	bookingService := bookings.NewService(
		bookings.NewRepository(pool),
		bookings.NewLocker(redisClient, cfg.BookingLockTTL),
		validator,
		auditService,
		m,
		logger,
	)

	return &handlers{
		availability: availability.NewHandler(resolver, logger),
		validation:   validation.NewHandler(validator, logger),
		bookings:     bookings.NewHandler(bookingService, logger),
		catalog:      catalog.NewHandler(snapshots, cfg.ImplausibleIntervalDays, locale, logger),
		clinic:       clinic.NewHandler(clinicStore, logger),
		stats:        clinic.NewStatsHandler(clinic.NewStatsRepository(pool), logger),
		audit:        compliance.NewHandler(auditService, logger),
	}, nil
}

func setupMetrics() (http.Handler, *metrics.AvailabilityMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewAvailabilityMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

func connectRedis(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

func setupEventDelivery(ctx context.Context, cfg *appconfig.Config, db events.DB, logger *logging.Logger) (*events.Deliverer, error) {
	var handler events.DeliveryHandler
	client, queueURL, err := mainconfig.BookingEventsClient(ctx, cfg)
	switch {
	case errors.Is(err, mainconfig.ErrNoQueue):
		logger.Warn("BOOKING_EVENTS_QUEUE_URL not set; booking events are logged only")
		handler = events.LogHandler{Log: logger.Info}
	case err != nil:
		return nil, err
	default:
		publisher, err := events.NewSQSPublisher(client, queueURL)
		if err != nil {
			return nil, err
		}
		handler = publisher
	}
	return events.NewDeliverer(events.NewOutboxStore(db), handler, logger).WithInterval(cfg.OutboxPollInterval), nil
}
