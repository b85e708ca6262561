package catalog

import (
	"context"
	"time"

	"github.com/wolfman30/medspa-availability/internal/interval"
)

// Snapshot is the reference data for one resolution or validation call.
// It is loaded once and never mutated.
type Snapshot struct {
	ClinicID string
	Menus    *Catalog
	Matrix   *interval.Matrix
	LoadedAt time.Time
}

// NewSnapshot assembles a snapshot from already-parsed parts.
func NewSnapshot(clinicID string, menus []Menu, cells []interval.Cell, loadedAt time.Time) *Snapshot {
	return &Snapshot{
		ClinicID: clinicID,
		Menus:    NewCatalog(menus),
		Matrix:   interval.NewMatrix(cells),
		LoadedAt: loadedAt,
	}
}

// Quality runs the matrix diagnostic against this snapshot's menu list.
func (s *Snapshot) Quality(implausibleDays int) interval.QualityReport {
	menus := s.Menus.Menus()
	keyed := make([]interval.Keyed, len(menus))
	for i := range menus {
		keyed[i] = menus[i]
	}
	return s.Matrix.Quality(keyed, implausibleDays)
}

// Source loads snapshots for a clinic.
type Source interface {
	Snapshot(ctx context.Context, clinicID string) (*Snapshot, error)
}

// StaticSource always returns the same snapshot. Useful for tests and for
// callers that manage their own caching.
type StaticSource struct {
	Snap *Snapshot
}

// Snapshot implements Source.
func (s StaticSource) Snapshot(_ context.Context, _ string) (*Snapshot, error) {
	return s.Snap, nil
}
