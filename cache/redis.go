package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// REDIS CACHE - Shared, TTL-bounded
// =============================================================================

// Redis stores JSON-encoded values under prefix:key with a TTL. A nil client
// turns every call into a miss or a no-op, so callers can run without Redis.
type Redis[V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis[V any](client *redis.Client, prefix string, ttl time.Duration) *Redis[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis[V]{client: client, prefix: prefix, ttl: ttl}
}

var _ Cache[string] = (*Redis[string])(nil)

func (r *Redis[V]) key(k string) string {
	return fmt.Sprintf("%s:%s", r.prefix, k)
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if r.client == nil {
		return zero, false, nil
	}

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V) error {
	if r.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(key), data, r.ttl).Err()
}

func (r *Redis[V]) Remove(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	return r.client.Del(ctx, r.key(key)).Err()
}

// IsAvailable reports whether a Redis client is configured.
func (r *Redis[V]) IsAvailable() bool {
	return r.client != nil
}
