package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/wolfman30/medspa-availability/internal/catalog"
	"github.com/wolfman30/medspa-availability/internal/observability/metrics"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

var tracer = otel.Tracer("medspa.internal.availability")

const (
	defaultHistoryWindowMonths = 6
	defaultGranularityMinutes  = 30
	defaultCollaboratorTimeout = 5 * time.Second
)

// Config wires a Resolver to its collaborators.
type Config struct {
	Snapshots catalog.Source
	Vacancy   VacancySource
	History   HistoryProvider
	// Resources is optional for single-patient resolution without rooms and
	// required for multi-party resolution.
	Resources ResourceProvider
	// Settings supplies each clinic's timezone and slot granularity. When
	// nil, every clinic uses Location and GranularityMinutes.
	Settings SettingsSource

	Logger  *logging.Logger
	Metrics *metrics.AvailabilityMetrics

	Location            *time.Location
	HistoryWindowMonths int
	GranularityMinutes  int
	CollaboratorTimeout time.Duration
	Now                 func() time.Time
}

// Resolver computes availability. It holds no per-request state.
type Resolver struct {
	snapshots catalog.Source
	vacancy   VacancySource
	history   HistoryProvider
	resources ResourceProvider
	settings  SettingsSource
	logger    *logging.Logger
	metrics   *metrics.AvailabilityMetrics

	loc         *time.Location
	window      int
	granularity int
	timeout     time.Duration
	now         func() time.Time
}

// NewResolver validates the required collaborators and applies defaults.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Snapshots == nil {
		return nil, errors.New("availability: snapshot source required")
	}
	if cfg.Vacancy == nil {
		return nil, errors.New("availability: vacancy source required")
	}
	if cfg.History == nil {
		return nil, errors.New("availability: history provider required")
	}
	r := &Resolver{
		snapshots:   cfg.Snapshots,
		vacancy:     cfg.Vacancy,
		history:     cfg.History,
		resources:   cfg.Resources,
		settings:    cfg.Settings,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		loc:         cfg.Location,
		window:      cfg.HistoryWindowMonths,
		granularity: cfg.GranularityMinutes,
		timeout:     cfg.CollaboratorTimeout,
		now:         cfg.Now,
	}
	if r.logger == nil {
		r.logger = logging.Default()
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	if r.window <= 0 {
		r.window = defaultHistoryWindowMonths
	}
	if r.granularity <= 0 {
		r.granularity = defaultGranularityMinutes
	}
	if r.timeout <= 0 {
		r.timeout = defaultCollaboratorTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Settings returns the clinic's timezone and slot granularity, with the
// resolver's defaults in place of anything the clinic leaves unset.
func (r *Resolver) Settings(ctx context.Context, clinicID string) (ClinicSettings, error) {
	var s ClinicSettings
	if r.settings != nil {
		err := r.call(ctx, "clinic", func(ctx context.Context) error {
			var err error
			s, err = r.settings.Settings(ctx, clinicID)
			return err
		})
		if err != nil {
			return ClinicSettings{}, err
		}
	}
	return s.WithDefaults(ClinicSettings{Location: r.loc, GranularityMinutes: r.granularity}), nil
}

// call runs one collaborator request under the configured timeout and wraps
// any failure as a SourceError. There are no retries.
func (r *Resolver) call(ctx context.Context, source string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	err := fn(callCtx)
	r.metrics.ObserveSourceLatency(source, time.Since(start).Seconds())
	if err != nil {
		return sourceError(source, err)
	}
	return nil
}

func (r *Resolver) snapshot(ctx context.Context, clinicID string) (*catalog.Snapshot, error) {
	var snap *catalog.Snapshot
	err := r.call(ctx, "catalog", func(ctx context.Context) error {
		var err error
		snap, err = r.snapshots.Snapshot(ctx, clinicID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, &SourceError{Source: "catalog", Err: errors.New("no snapshot")}
	}
	return snap, nil
}

func validateRange(rng DateRange) error {
	if rng.From.IsZero() || rng.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidDateRange)
	}
	if !rng.From.Before(rng.To) {
		return fmt.Errorf("%w: from %s is not before to %s", ErrInvalidDateRange,
			rng.From.Format(time.RFC3339), rng.To.Format(time.RFC3339))
	}
	return nil
}

func validateMember(patientID string, menu catalog.MenuRef) error {
	if strings.TrimSpace(patientID) == "" {
		return fmt.Errorf("%w: patient_id is required", ErrInvalidRequest)
	}
	if menu.IsZero() {
		return fmt.Errorf("%w: menu_id or menu_name is required", ErrInvalidRequest)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSourceUnavailable):
		return "source_error"
	default:
		return "input_error"
	}
}
