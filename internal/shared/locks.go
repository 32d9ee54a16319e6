package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PeriodCloseLockKey builds the redis key serialising close runs per period.
func PeriodCloseLockKey(periodID int64) string {
	return fmt.Sprintf("fiscal:period:%d:close", periodID)
}

// ErrLockHeld indicates the critical section is already taken.
var ErrLockHeld = errors.New("lock already held")

// Mutex is a minimal redis SETNX lock for coarse critical sections such as
// period close. Row locks inside the posting transaction remain the
// correctness mechanism; this only prevents duplicate close runs.
type Mutex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMutex constructs a Mutex with the given TTL.
func NewMutex(client *redis.Client, ttl time.Duration) *Mutex {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Mutex{client: client, ttl: ttl}
}

// Acquire takes the lock or returns ErrLockHeld.
func (m *Mutex) Acquire(ctx context.Context, key string) error {
	if m == nil || m.client == nil {
		return nil
	}
	ok, err := m.client.SetNX(ctx, key, "1", m.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// Release drops the lock.
func (m *Mutex) Release(ctx context.Context, key string) error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Del(ctx, key).Err()
}
