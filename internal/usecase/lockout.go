package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/davinaleong/project-pulse-auth/internal/core/port"
)

const (
	defaultLockoutMaxFailures = 5
	defaultLockoutCooldown    = 15 * time.Minute
)

// LockoutService tracks consecutive failed logins per account and enforces a
// cooldown once the failure threshold is reached. Counters live in the
// lockout store (Redis in production) so the policy holds across replicas;
// the store's atomic increment is the concurrency control.
type LockoutService struct {
	store       port.LockoutStore
	maxFailures int
	cooldown    time.Duration
}

// NewLockoutService constructs a lockout tracker with the supplied policy.
// Non-positive values fall back to the defaults (5 failures, 15 minutes).
func NewLockoutService(store port.LockoutStore, maxFailures int, cooldown time.Duration) *LockoutService {
	if maxFailures <= 0 {
		maxFailures = defaultLockoutMaxFailures
	}
	if cooldown <= 0 {
		cooldown = defaultLockoutCooldown
	}
	return &LockoutService{store: store, maxFailures: maxFailures, cooldown: cooldown}
}

// RecordFailure registers a failed login attempt and returns the updated
// failure count. Each failure restarts the cooldown window, so the lock
// expires relative to the most recent failure.
func (s *LockoutService) RecordFailure(ctx context.Context, key string) (int, error) {
	if key == "" {
		return 0, fmt.Errorf("lockout key is required")
	}

	count, err := s.store.Increment(ctx, key, s.cooldown)
	if err != nil {
		return 0, fmt.Errorf("record login failure: %w", err)
	}

	return count, nil
}

// RecordSuccess clears the failure counter unconditionally.
func (s *LockoutService) RecordSuccess(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("lockout key is required")
	}

	if err := s.store.Reset(ctx, key); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}

	return nil
}

// IsLocked reports whether the account has reached the failure threshold
// within the active cooldown window.
func (s *LockoutService) IsLocked(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("lockout key is required")
	}

	count, err := s.store.Failures(ctx, key)
	if err != nil {
		return false, fmt.Errorf("count login failures: %w", err)
	}

	return count >= s.maxFailures, nil
}
