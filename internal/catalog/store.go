package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/medspa-availability/internal/interval"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads menus and interval cells from Postgres. The tables are
// written by the administrative sync; this package only reads them.
type Store struct {
	db              DB
	logger          *logging.Logger
	implausibleDays int
	now             func() time.Time
}

// NewStore creates a catalog store.
func NewStore(db DB, implausibleDays int, logger *logging.Logger) *Store {
	if db == nil {
		panic("catalog: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger, implausibleDays: implausibleDays, now: time.Now}
}

// LoadMenus returns the active menus for a clinic.
func (s *Store) LoadMenus(ctx context.Context, clinicID string) ([]Menu, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, category, duration_minutes
		FROM menus
		WHERE clinic_id = $1 AND active
		ORDER BY id`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("catalog: load menus: %w", err)
	}
	defer rows.Close()

	var menus []Menu
	for rows.Next() {
		var m Menu
		if err := rows.Scan(&m.ID, &m.Name, &m.Category, &m.DurationMinutes); err != nil {
			return nil, fmt.Errorf("catalog: scan menu: %w", err)
		}
		menus = append(menus, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: load menus: %w", err)
	}
	return menus, nil
}

// LoadCells returns the raw interval matrix cells for a clinic.
func (s *Store) LoadCells(ctx context.Context, clinicID string) ([]interval.Cell, error) {
	rows, err := s.db.Query(ctx, `
		SELECT from_key, to_key, raw_value
		FROM interval_rules
		WHERE clinic_id = $1
		ORDER BY from_key, to_key`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("catalog: load interval rules: %w", err)
	}
	defer rows.Close()

	var cells []interval.Cell
	for rows.Next() {
		var c interval.Cell
		if err := rows.Scan(&c.From, &c.To, &c.Raw); err != nil {
			return nil, fmt.Errorf("catalog: scan interval rule: %w", err)
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: load interval rules: %w", err)
	}
	return cells, nil
}

// Snapshot implements Source by reading straight from Postgres.
func (s *Store) Snapshot(ctx context.Context, clinicID string) (*Snapshot, error) {
	menus, err := s.LoadMenus(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	cells, err := s.LoadCells(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	snap := NewSnapshot(clinicID, menus, cells, s.now().UTC())
	reportQuality(s.logger, snap, s.implausibleDays)
	return snap, nil
}

// reportQuality logs matrix findings at load time, off the lookup path.
func reportQuality(logger *logging.Logger, snap *Snapshot, implausibleDays int) {
	report := snap.Quality(implausibleDays)
	if !report.HasIssues() {
		logger.Debug("interval matrix loaded",
			"clinic_id", snap.ClinicID,
			"filled", report.Filled,
			"menus", snap.Menus.Len(),
		)
		return
	}
	logger.Warn("interval matrix data-quality issues",
		"clinic_id", snap.ClinicID,
		"filled", report.Filled,
		"empty", report.Empty,
		"unparseable", len(report.Invalid),
		"implausible", len(report.Implausible),
		"duplicates", len(report.Duplicates),
		"missing_from_matrix", report.MissingFromMatrix,
		"unknown_in_matrix", report.UnknownInMatrix,
	)
	for _, issue := range report.Invalid {
		logger.Warn("interval matrix cell unparseable",
			"clinic_id", snap.ClinicID,
			"from", issue.From,
			"to", issue.To,
			"raw", issue.Raw,
		)
	}
}
