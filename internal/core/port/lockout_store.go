package port

import (
	"context"
	"time"
)

// LockoutStore keeps per-account consecutive-failure counters. Increment must
// be atomic at the storage boundary because several replicas may record
// failures for the same account concurrently.
type LockoutStore interface {
	Increment(ctx context.Context, key string, cooldown time.Duration) (int, error)
	Failures(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}
