package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 15 * time.Second

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serializes commits per clinic, patient and local day.
type Locker struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewLocker creates a Redis-backed locker. A non-positive ttl uses 15s.
func NewLocker(redisClient *redis.Client, ttl time.Duration) *Locker {
	if redisClient == nil {
		panic("bookings: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Locker{redis: redisClient, ttl: ttl}
}

// LockKey builds the lock key for a patient's bookings on the local day of at.
func LockKey(clinicID, patientID string, at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("booking:lock:%s:%s:%s", clinicID, patientID, at.In(loc).Format("2006-01-02"))
}

// Lock is a held lock. Release only deletes the key while the token matches.
type Lock struct {
	key   string
	token string
	l     *Locker
}

// Acquire takes the lock or returns ErrBookingInProgress when it is held.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lock, error) {
	token := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("bookings: acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrBookingInProgress
	}
	return &Lock{key: key, token: token, l: l}, nil
}

// Release frees the lock if it still belongs to this holder.
func (k *Lock) Release(ctx context.Context) error {
	if k == nil {
		return nil
	}
	err := releaseScript.Run(ctx, k.l.redis, []string{k.key}, k.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("bookings: release lock: %w", err)
	}
	return nil
}
