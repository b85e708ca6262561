package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medspa-availability/internal/availability"
	"github.com/wolfman30/medspa-availability/internal/catalog"
	"github.com/wolfman30/medspa-availability/internal/interval"
	"github.com/wolfman30/medspa-availability/internal/observability/metrics"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

var tracer = otel.Tracer("medspa.internal.validation")

const (
	defaultLookbackYears = 2
	defaultTimeout       = 5 * time.Second
)

// Config wires a Validator.
type Config struct {
	Snapshots catalog.Source
	History   availability.HistoryProvider
	// Settings supplies each clinic's timezone and locale. When nil, every
	// clinic uses Location and Locale.
	Settings availability.SettingsSource
	Logger   *logging.Logger
	Metrics  *metrics.AvailabilityMetrics

	Location            *time.Location
	LookbackYears       int
	Locale              interval.Locale
	CollaboratorTimeout time.Duration
	Now                 func() time.Time
}

// Validator is the authoritative commit-time check. It assumes nothing
// about earlier availability queries and loads fresh data on every call.
type Validator struct {
	snapshots catalog.Source
	history   availability.HistoryProvider
	settings  availability.SettingsSource
	logger    *logging.Logger
	metrics   *metrics.AvailabilityMetrics
	loc       *time.Location
	years     int
	locale    interval.Locale
	timeout   time.Duration
	now       func() time.Time
}

// NewValidator applies defaults and checks required collaborators.
func NewValidator(cfg Config) (*Validator, error) {
	if cfg.Snapshots == nil {
		return nil, errors.New("validation: snapshot source required")
	}
	if cfg.History == nil {
		return nil, errors.New("validation: history provider required")
	}
	v := &Validator{
		snapshots: cfg.Snapshots,
		history:   cfg.History,
		settings:  cfg.Settings,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		loc:       cfg.Location,
		years:     cfg.LookbackYears,
		locale:    cfg.Locale,
		timeout:   cfg.CollaboratorTimeout,
		now:       cfg.Now,
	}
	if v.logger == nil {
		v.logger = logging.Default()
	}
	if v.loc == nil {
		v.loc = time.UTC
	}
	if v.years <= 0 {
		v.years = defaultLookbackYears
	}
	if v.locale == "" {
		v.locale = interval.LocaleJA
	}
	if v.timeout <= 0 {
		v.timeout = defaultTimeout
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v, nil
}

// Settings returns the clinic's timezone and locale with the validator's
// defaults in place of anything the clinic leaves unset.
func (v *Validator) Settings(ctx context.Context, clinicID string) (availability.ClinicSettings, error) {
	var s availability.ClinicSettings
	if v.settings != nil {
		callCtx, cancel := context.WithTimeout(ctx, v.timeout)
		defer cancel()
		var err error
		if s, err = v.settings.Settings(callCtx, clinicID); err != nil {
			return availability.ClinicSettings{}, &availability.SourceError{Source: "clinic", Err: err}
		}
	}
	return s.WithDefaults(availability.ClinicSettings{Location: v.loc, Locale: string(v.locale)}), nil
}

// Location is the clinic's timezone. Datetimes without an offset are read
// in it, and the commit path keys its lock and same-day guard on it.
func (v *Validator) Location(ctx context.Context, clinicID string) (*time.Location, error) {
	s, err := v.Settings(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	return s.Location, nil
}

// load fetches the snapshot and the lookback history once per call.
func (v *Validator) load(ctx context.Context, clinicID, patientID string, ref catalog.MenuRef) (*evaluation, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, fmt.Errorf("%w: patient_id is required", availability.ErrInvalidRequest)
	}
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: menu_id or menu_name is required", availability.ErrInvalidRequest)
	}

	settings, err := v.Settings(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	snap, err := v.snapshots.Snapshot(callCtx, clinicID)
	if err != nil {
		return nil, &availability.SourceError{Source: "catalog", Err: err}
	}
	if snap == nil {
		return nil, &availability.SourceError{Source: "catalog", Err: errors.New("no snapshot")}
	}
	menu, err := snap.Menus.Resolve(ref)
	if err != nil {
		return nil, err
	}

	now := v.now()
	since := now.AddDate(-v.years, 0, 0)
	start := time.Now()
	records, err := v.history.GetHistory(callCtx, clinicID, patientID, since)
	v.metrics.ObserveSourceLatency("history", time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, availability.ErrPatientNotFound) {
			return nil, err
		}
		return nil, &availability.SourceError{Source: "history", Err: err}
	}
	return &evaluation{
		snap:    snap,
		menu:    menu,
		records: records,
		now:     now,
		since:   since,
		loc:     settings.Location,
		locale:  interval.ParseLocale(settings.Locale),
	}, nil
}

// CheckVisitHistory summarizes the patient's visits. Informational only.
func (v *Validator) CheckVisitHistory(ctx context.Context, clinicID, patientID string, menu catalog.MenuRef) (VisitHistory, error) {
	e, err := v.load(ctx, clinicID, patientID, menu)
	if err != nil {
		return VisitHistory{}, err
	}
	return e.visitHistory(), nil
}

// ValidateTreatmentInterval checks every interval rule between the
// patient's menus and the target menu at candidate. A zero candidate means
// now.
func (v *Validator) ValidateTreatmentInterval(ctx context.Context, clinicID, patientID string, menu catalog.MenuRef, candidate time.Time) (IntervalCheck, error) {
	e, err := v.load(ctx, clinicID, patientID, menu)
	if err != nil {
		return IntervalCheck{}, err
	}
	if candidate.IsZero() {
		candidate = e.now
	}
	return e.interval(candidate), nil
}

// ValidateSameDayConstraint lists same-menu reservations on candidate's date.
func (v *Validator) ValidateSameDayConstraint(ctx context.Context, clinicID, patientID string, menu catalog.MenuRef, candidate time.Time) (SameDayCheck, error) {
	if candidate.IsZero() {
		return SameDayCheck{}, fmt.Errorf("%w: datetime is required", availability.ErrInvalidRequest)
	}
	e, err := v.load(ctx, clinicID, patientID, menu)
	if err != nil {
		return SameDayCheck{}, err
	}
	return e.sameDay(candidate), nil
}

// ValidateReservation composes the three checks. Rule violations are
// itemized in the result; only input and source failures are errors.
func (v *Validator) ValidateReservation(ctx context.Context, req Request) (result *Result, err error) {
	ctx, span := tracer.Start(ctx, "validation.validate_reservation")
	defer span.End()
	span.SetAttributes(
		attribute.String("medspa.clinic_id", req.ClinicID),
		attribute.String("medspa.patient_id", req.PatientID),
		attribute.String("medspa.menu", req.Menu.String()),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			return
		}
		v.metrics.ObserveValidation(result.IsValid)
		span.SetAttributes(attribute.Bool("medspa.valid", result.IsValid))
	}()

	if req.Datetime.IsZero() {
		return nil, fmt.Errorf("%w: datetime is required", availability.ErrInvalidRequest)
	}
	e, err := v.load(ctx, req.ClinicID, req.PatientID, req.Menu)
	if err != nil {
		return nil, err
	}
	return v.compose(e, req.Datetime), nil
}

func (v *Validator) compose(e *evaluation, candidate time.Time) *Result {
	result := &Result{
		Menu:         e.menu,
		Datetime:     candidate,
		Errors:       []Issue{},
		Warnings:     []Issue{},
		VisitHistory: e.visitHistory(),
		Interval:     e.interval(candidate),
		SameDay:      e.sameDay(candidate),
	}

	if !result.Interval.IsAvailable && result.Interval.Binding != nil {
		result.Errors = append(result.Errors, Issue{
			Type:    TypeTreatmentInterval,
			Message: intervalMessage(e.locale, e.loc, *result.Interval.Binding),
			Details: result.Interval,
		})
	}
	if !result.SameDay.IsAvailable {
		result.Errors = append(result.Errors, Issue{
			Type:    TypeSameDayConstraint,
			Message: sameDayMessage(e.locale, e.loc, e.menu, candidate),
			Details: result.SameDay.Conflicts,
		})
	}
	if result.VisitHistory.IsFirstVisit {
		result.Warnings = append(result.Warnings, Issue{
			Type:    TypeFirstVisit,
			Message: firstVisitMessage(e.locale),
			Details: result.VisitHistory,
		})
	}
	result.IsValid = result.Interval.IsAvailable && result.SameDay.IsAvailable

	if !result.IsValid {
		v.logger.Info("reservation failed validation",
			"menu", e.menu.Label(),
			"datetime", candidate.Format(time.RFC3339),
			"errors", result.ErrorTypes(),
		)
	}
	return result
}
