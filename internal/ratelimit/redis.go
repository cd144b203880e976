package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"apigate/internal/models"
)

// RedisStore is a Redis-backed fixed-window counter store. Counters are
// shared across all service instances pointing at the same Redis, which is
// what makes horizontally scaled deployments enforce one global quota per
// key. INCR plus EXPIRE NX in a transactional pipeline gives the required
// atomic increment-and-check: the expiry is bound to the window's first
// write and racing increments observe distinct counts.
type RedisStore struct {
	client *redis.Client
}

var _ CounterStore = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(cfg models.RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// IncrementAndCheck increments the key's window counter. EXPIRE NX only sets
// the TTL on the window's first increment, so the window stays aligned to
// its first write; PTTL in the same pipeline yields the reset instant.
func (s *RedisStore) IncrementAndCheck(ctx context.Context, key string, limit int, decay time.Duration) (Result, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, decay)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("redis increment failed: %w", err)
	}

	count := incr.Val()
	resetAt := time.Now().Add(decay)
	if d := ttl.Val(); d > 0 {
		resetAt = time.Now().Add(d)
	}

	return Result{
		Count:   count,
		Allowed: count <= int64(limit),
		ResetAt: resetAt,
	}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
