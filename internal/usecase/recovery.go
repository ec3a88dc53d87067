package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
	"github.com/davinaleong/project-pulse-auth/internal/core/port"
	"github.com/davinaleong/project-pulse-auth/internal/infra/security"
	"github.com/davinaleong/project-pulse-auth/internal/repository"
)

const (
	defaultRecoveryWindow      = time.Hour
	defaultRecoveryMaxRequests = 3
	defaultRecoveryTTL         = 24 * time.Hour

	recoveryRateLimitScope = "recovery"
	recoveryTokenBytes     = 32
)

// ErrInvalidOrExpiredToken covers recovery tokens that are absent, expired,
// or already consumed. The states are collapsed into one signal so callers
// cannot probe which applied.
var ErrInvalidOrExpiredToken = errors.New("recovery token invalid or expired")

// RateLimitExceededError indicates the per-account recovery request cap was
// reached within the rolling window. It surfaces only on internal call
// paths; external responses stay generic.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

// Error implements error.
func (e *RateLimitExceededError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry in %s", e.Scope, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Scope)
}

// RecoveryService is the single-use token engine shared by the password
// reset and email verification flows. One implementation handles
// generation, rate limiting, expiry, and consumption; the purpose tag is
// the only thing the call sites specialize.
type RecoveryService struct {
	tokens      port.RecoveryTokenRepository
	rateLimits  port.RateLimitStore
	logger      *zap.Logger
	now         func() time.Time
	maxRequests int
	window      time.Duration
	ttls        map[domain.RecoveryPurpose]time.Duration
}

// NewRecoveryService constructs the recovery token engine.
func NewRecoveryService(tokens port.RecoveryTokenRepository, rateLimits port.RateLimitStore, logger *zap.Logger) *RecoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecoveryService{
		tokens:      tokens,
		rateLimits:  rateLimits,
		logger:      logger,
		now:         time.Now,
		maxRequests: defaultRecoveryMaxRequests,
		window:      defaultRecoveryWindow,
		ttls: map[domain.RecoveryPurpose]time.Duration{
			domain.RecoveryPurposePasswordReset: defaultRecoveryTTL,
			domain.RecoveryPurposeEmailVerify:   defaultRecoveryTTL,
		},
	}
}

// WithClock overrides the clock used by the service, primarily for tests.
func (s *RecoveryService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithRateLimit adjusts the per-account request cap and rolling window.
func (s *RecoveryService) WithRateLimit(maxRequests int, window time.Duration) {
	if maxRequests > 0 {
		s.maxRequests = maxRequests
	}
	if window > 0 {
		s.window = window
	}
}

// WithTTL overrides the validity duration for one purpose.
func (s *RecoveryService) WithTTL(purpose domain.RecoveryPurpose, ttl time.Duration) {
	if ttl > 0 {
		s.ttls[purpose] = ttl
	}
}

// Request issues a new recovery token for the account. Prior requests within
// the rolling window count against the cap; hitting it fails with
// RateLimitExceededError. Issuance deletes every outstanding token for the
// account first. Deletion is per-account rather than per-purpose, so a new
// reset token also invalidates a pending verification token.
func (s *RecoveryService) Request(ctx context.Context, accountID string, purpose domain.RecoveryPurpose) (string, *domain.RecoveryToken, error) {
	if accountID == "" {
		return "", nil, fmt.Errorf("account id is required")
	}

	now := s.now().UTC()
	if err := s.enforceRateLimit(ctx, accountID, now); err != nil {
		return "", nil, err
	}

	if _, err := s.tokens.DeleteForAccount(ctx, accountID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", nil, fmt.Errorf("clear outstanding recovery tokens: %w", err)
	}

	raw, err := security.GenerateSecureToken(recoveryTokenBytes)
	if err != nil {
		return "", nil, fmt.Errorf("generate recovery token: %w", err)
	}

	ttl := s.ttls[purpose]
	if ttl <= 0 {
		ttl = defaultRecoveryTTL
	}

	token := domain.RecoveryToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: security.HashToken(raw),
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return "", nil, fmt.Errorf("store recovery token: %w", err)
	}

	return raw, &token, nil
}

// Verify resolves a raw token to its record. Absent, expired, and consumed
// tokens all fail with ErrInvalidOrExpiredToken.
func (s *RecoveryService) Verify(ctx context.Context, raw string) (*domain.RecoveryToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	token, err := s.tokens.GetByTokenHash(ctx, security.HashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("lookup recovery token: %w", err)
	}

	if !token.Usable(s.now().UTC()) {
		return nil, ErrInvalidOrExpiredToken
	}

	return token, nil
}

// Consume re-validates the token and stamps its consumed timestamp through a
// conditional update. A second consume on the same token fails with
// ErrInvalidOrExpiredToken rather than silently succeeding.
func (s *RecoveryService) Consume(ctx context.Context, raw string) (*domain.RecoveryToken, error) {
	token, err := s.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.tokens.ConsumeIfFresh(ctx, token.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("consume recovery token: %w", err)
	}

	token.ConsumedAt = &now
	return token, nil
}

// SweepExpired deletes strictly-expired tokens and returns how many were
// removed. It only touches rows past their expiry, so it is safe to run
// concurrently with issuance.
func (s *RecoveryService) SweepExpired(ctx context.Context) (int, error) {
	count, err := s.tokens.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep expired recovery tokens: %w", err)
	}
	return count, nil
}

func (s *RecoveryService) enforceRateLimit(ctx context.Context, accountID string, now time.Time) error {
	if s.rateLimits == nil || s.maxRequests <= 0 {
		return nil
	}

	key := fmt.Sprintf("%s:%s", recoveryRateLimitScope, accountID)

	if err := s.rateLimits.TrimWindow(ctx, key, s.window, now); err != nil {
		s.logger.Warn("recovery rate limit trim failed", zap.Error(err))
		return nil
	}

	count, err := s.rateLimits.CountAttempts(ctx, key, s.window, now)
	if err != nil {
		s.logger.Warn("recovery rate limit count failed", zap.Error(err))
		return nil
	}

	if count >= s.maxRequests {
		retryAfter := time.Duration(0)
		if oldest, ok, err := s.rateLimits.OldestAttempt(ctx, key, s.window, now); err == nil && ok {
			if reset := oldest.Add(s.window); reset.After(now) {
				retryAfter = reset.Sub(now)
			}
		} else if err != nil {
			s.logger.Warn("recovery rate limit oldest lookup failed", zap.Error(err))
		}
		return &RateLimitExceededError{Scope: recoveryRateLimitScope, RetryAfter: retryAfter}
	}

	if err := s.rateLimits.RecordAttempt(ctx, key, now); err != nil {
		s.logger.Warn("recovery rate limit record failed", zap.Error(err))
	}

	return nil
}
