package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefData is a small read-through cache for read-mostly reference data such
// as tax rates. A nil RefData is a no-op so services stay usable without
// Redis in tests.
type RefData struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRefData constructs a RefData cache with the given TTL.
func NewRefData(client *redis.Client, ttl time.Duration) *RefData {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RefData{client: client, ttl: ttl}
}

// ErrMiss indicates the key is absent.
var ErrMiss = errors.New("platform/cache: miss")

// Get unmarshals the cached value for key into target.
func (c *RefData) Get(ctx context.Context, key string, target any) error {
	if c == nil || c.client == nil {
		return ErrMiss
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(payload, target)
}

// Set stores value under key for the configured TTL.
func (c *RefData) Set(ctx context.Context, key string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate drops keys, typically after reference data mutation.
func (c *RefData) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
