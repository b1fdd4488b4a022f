package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Redis.GetBytes when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Redis is an optional shared byte-value layer used under the in-process
// caches when several radar instances share one upstream quota. Values are
// opaque bytes; callers handle their own encoding.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects a client for the given address and database. The TTL
// applies to every SetBytes.
func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

// Ping verifies the connection; called once at startup.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// GetBytes fetches a raw value, translating the driver's miss sentinel.
func (r *Redis) GetBytes(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

// SetBytes stores a raw value under the configured TTL.
func (r *Redis) SetBytes(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the client's connections.
func (r *Redis) Close() error { return r.client.Close() }
