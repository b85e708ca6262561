package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/medspa-availability/internal/interval"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

// CachedSource serves snapshots from Redis, falling back to the store on a
// miss. Invalidation on matrix edits belongs to the administrative sync,
// which calls Invalidate.
type CachedSource struct {
	redis  *redis.Client
	store  *Store
	ttl    time.Duration
	logger *logging.Logger
	tracer trace.Tracer
}

type cachedSnapshot struct {
	Menus    []Menu          `json:"menus"`
	Cells    []interval.Cell `json:"cells"`
	LoadedAt time.Time       `json:"loaded_at"`
}

// NewCachedSource wraps store with a Redis cache.
func NewCachedSource(redisClient *redis.Client, store *Store, ttl time.Duration, logger *logging.Logger) *CachedSource {
	if store == nil {
		panic("catalog: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSource{
		redis:  redisClient,
		store:  store,
		ttl:    ttl,
		logger: logger,
		tracer: otel.Tracer("medspa.internal.catalog"),
	}
}

func (c *CachedSource) key(clinicID string) string {
	return fmt.Sprintf("catalog:snapshot:%s", clinicID)
}

// Snapshot implements Source.
func (c *CachedSource) Snapshot(ctx context.Context, clinicID string) (*Snapshot, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.snapshot")
	defer span.End()
	span.SetAttributes(attribute.String("medspa.clinic_id", clinicID))

	if c.redis != nil {
		data, err := c.redis.Get(ctx, c.key(clinicID)).Bytes()
		switch {
		case err == nil:
			var cached cachedSnapshot
			if err := json.Unmarshal(data, &cached); err == nil {
				span.SetAttributes(attribute.Bool("medspa.cache_hit", true))
				return NewSnapshot(clinicID, cached.Menus, cached.Cells, cached.LoadedAt), nil
			}
			c.logger.Warn("catalog: discarding corrupt cached snapshot", "clinic_id", clinicID)
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("catalog: snapshot cache read failed", "clinic_id", clinicID, "error", err)
		}
	}

	span.SetAttributes(attribute.Bool("medspa.cache_hit", false))
	menus, err := c.store.LoadMenus(ctx, clinicID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	cells, err := c.store.LoadCells(ctx, clinicID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	snap := NewSnapshot(clinicID, menus, cells, c.store.now().UTC())
	reportQuality(c.logger, snap, c.store.implausibleDays)

	if c.redis != nil {
		data, err := json.Marshal(cachedSnapshot{Menus: menus, Cells: cells, LoadedAt: snap.LoadedAt})
		if err == nil {
			err = c.redis.Set(ctx, c.key(clinicID), data, c.ttl).Err()
		}
		if err != nil {
			c.logger.Warn("catalog: snapshot cache write failed", "clinic_id", clinicID, "error", err)
		}
	}
	return snap, nil
}

// Invalidate drops the cached snapshot for a clinic.
func (c *CachedSource) Invalidate(ctx context.Context, clinicID string) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, c.key(clinicID)).Err(); err != nil {
		return fmt.Errorf("catalog: invalidate snapshot: %w", err)
	}
	return nil
}
