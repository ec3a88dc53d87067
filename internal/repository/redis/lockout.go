package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davinaleong/project-pulse-auth/internal/core/port"
)

// LockoutRepository keeps consecutive login failure counters in Redis.
// INCR is atomic server-side, so replicas recording failures for the same
// account cannot lose updates; the key TTL implements the cooldown window
// measured from the most recent failure.
type LockoutRepository struct {
	client *redis.Client
	prefix string
}

// NewLockoutRepository constructs a Redis-backed lockout store.
func NewLockoutRepository(client *redis.Client, prefix string) *LockoutRepository {
	return &LockoutRepository{client: client, prefix: prefix}
}

// Increment bumps the failure counter and restarts the cooldown TTL.
func (r *LockoutRepository) Increment(ctx context.Context, key string, cooldown time.Duration) (int, error) {
	if cooldown <= 0 {
		return 0, errors.New("cooldown must be positive")
	}

	storageKey := r.key(key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, storageKey)
	pipe.Expire(ctx, storageKey, cooldown)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}

	return int(incr.Val()), nil
}

// Failures returns the current counter value; a missing key counts as zero.
func (r *LockoutRepository) Failures(ctx context.Context, key string) (int, error) {
	count, err := r.client.Get(ctx, r.key(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return count, nil
}

// Reset removes the counter unconditionally.
func (r *LockoutRepository) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *LockoutRepository) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

var _ port.LockoutStore = (*LockoutRepository)(nil)
