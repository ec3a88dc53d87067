package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	uuid "github.com/google/uuid"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
	"github.com/davinaleong/project-pulse-auth/internal/infra/security"
)

type recoveryFixture struct {
	tokens  *testRecoveryTokenRepo
	limits  *testRateLimitStore
	service *RecoveryService
	now     time.Time
}

func newRecoveryFixture() *recoveryFixture {
	f := &recoveryFixture{
		tokens: newTestRecoveryTokenRepo(),
		limits: newTestRateLimitStore(),
		now:    time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC),
	}
	f.service = NewRecoveryService(f.tokens, f.limits, nil)
	f.service.WithClock(func() time.Time { return f.now })
	return f
}

func TestRecoveryRequestIssuesToken(t *testing.T) {
	f := newRecoveryFixture()
	accountID := uuid.NewString()

	raw, token, err := f.service.Request(context.Background(), accountID, domain.RecoveryPurposePasswordReset)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if raw == "" {
		t.Fatal("expected a raw token")
	}
	if token.TokenHash != security.HashToken(raw) {
		t.Fatal("stored hash must match the raw token")
	}
	if token.TokenHash == raw {
		t.Fatal("raw token must never be stored verbatim")
	}
	if token.Purpose != domain.RecoveryPurposePasswordReset {
		t.Fatalf("purpose = %q, want %q", token.Purpose, domain.RecoveryPurposePasswordReset)
	}
	if !token.ExpiresAt.Equal(f.now.Add(24 * time.Hour)) {
		t.Fatalf("expiry = %v, want %v", token.ExpiresAt, f.now.Add(24*time.Hour))
	}
}

func TestRecoveryRequestReplacesOutstandingTokens(t *testing.T) {
	f := newRecoveryFixture()
	accountID := uuid.NewString()

	firstRaw, _, err := f.service.Request(context.Background(), accountID, domain.RecoveryPurposeEmailVerify)
	if err != nil {
		t.Fatalf("first Request returned error: %v", err)
	}

	if _, _, err := f.service.Request(context.Background(), accountID, domain.RecoveryPurposePasswordReset); err != nil {
		t.Fatalf("second Request returned error: %v", err)
	}

	if count := f.tokens.count(); count != 1 {
		t.Fatalf("outstanding tokens = %d, want 1", count)
	}
	if _, err := f.service.Verify(context.Background(), firstRaw); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("superseded token: expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestRecoveryRequestRateLimited(t *testing.T) {
	f := newRecoveryFixture()
	f.service.WithRateLimit(3, time.Hour)
	accountID := uuid.NewString()

	for i := 0; i < 3; i++ {
		if _, _, err := f.service.Request(context.Background(), accountID, domain.RecoveryPurposePasswordReset); err != nil {
			t.Fatalf("request %d returned error: %v", i+1, err)
		}
		f.now = f.now.Add(time.Minute)
	}

	_, _, err := f.service.Request(context.Background(), accountID, domain.RecoveryPurposePasswordReset)
	var limitErr *RateLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected RateLimitExceededError, got %v", err)
	}
	if limitErr.RetryAfter <= 0 || limitErr.RetryAfter > time.Hour {
		t.Fatalf("retry after = %v, want within (0, 1h]", limitErr.RetryAfter)
	}

	// A different account is unaffected by the cap.
	if _, _, err := f.service.Request(context.Background(), uuid.NewString(), domain.RecoveryPurposePasswordReset); err != nil {
		t.Fatalf("unrelated account hit the limit: %v", err)
	}

	// Once the window rolls past the earliest attempt, requests resume.
	f.now = f.now.Add(time.Hour)
	if _, _, err := f.service.Request(context.Background(), accountID, domain.RecoveryPurposePasswordReset); err != nil {
		t.Fatalf("request after window rolled: %v", err)
	}
}

func TestRecoveryVerify(t *testing.T) {
	f := newRecoveryFixture()
	accountID := uuid.NewString()

	raw, _, err := f.service.Request(context.Background(), accountID, domain.RecoveryPurposePasswordReset)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}

	token, err := f.service.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if token.AccountID != accountID {
		t.Fatalf("account = %q, want %q", token.AccountID, accountID)
	}

	if _, err := f.service.Verify(context.Background(), "unknown-token"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("unknown token: expected ErrInvalidOrExpiredToken, got %v", err)
	}
	if _, err := f.service.Verify(context.Background(), ""); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("empty token: expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestRecoveryVerifyExpiredToken(t *testing.T) {
	f := newRecoveryFixture()
	f.service.WithTTL(domain.RecoveryPurposePasswordReset, time.Hour)

	raw, _, err := f.service.Request(context.Background(), uuid.NewString(), domain.RecoveryPurposePasswordReset)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}

	f.now = f.now.Add(61 * time.Minute)
	if _, err := f.service.Verify(context.Background(), raw); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestRecoveryConsumeIsSingleUse(t *testing.T) {
	f := newRecoveryFixture()

	raw, _, err := f.service.Request(context.Background(), uuid.NewString(), domain.RecoveryPurposeEmailVerify)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}

	token, err := f.service.Consume(context.Background(), raw)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if token.ConsumedAt == nil {
		t.Fatal("expected consumed timestamp to be set")
	}

	if _, err := f.service.Consume(context.Background(), raw); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("second consume: expected ErrInvalidOrExpiredToken, got %v", err)
	}
	if _, err := f.service.Verify(context.Background(), raw); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("verify after consume: expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestRecoveryPerPurposeTTL(t *testing.T) {
	f := newRecoveryFixture()
	f.service.WithTTL(domain.RecoveryPurposePasswordReset, time.Hour)
	f.service.WithTTL(domain.RecoveryPurposeEmailVerify, 48*time.Hour)

	_, reset, err := f.service.Request(context.Background(), uuid.NewString(), domain.RecoveryPurposePasswordReset)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if !reset.ExpiresAt.Equal(f.now.Add(time.Hour)) {
		t.Fatalf("reset expiry = %v, want %v", reset.ExpiresAt, f.now.Add(time.Hour))
	}

	_, verify, err := f.service.Request(context.Background(), uuid.NewString(), domain.RecoveryPurposeEmailVerify)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if !verify.ExpiresAt.Equal(f.now.Add(48 * time.Hour)) {
		t.Fatalf("verify expiry = %v, want %v", verify.ExpiresAt, f.now.Add(48*time.Hour))
	}
}

func TestRecoverySweepExpired(t *testing.T) {
	f := newRecoveryFixture()
	f.service.WithTTL(domain.RecoveryPurposePasswordReset, time.Hour)

	if _, _, err := f.service.Request(context.Background(), uuid.NewString(), domain.RecoveryPurposePasswordReset); err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if _, _, err := f.service.Request(context.Background(), uuid.NewString(), domain.RecoveryPurposePasswordReset); err != nil {
		t.Fatalf("Request returned error: %v", err)
	}

	f.now = f.now.Add(2 * time.Hour)
	swept, err := f.service.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired returned error: %v", err)
	}
	if swept != 2 {
		t.Fatalf("swept = %d, want 2", swept)
	}
	if count := f.tokens.count(); count != 0 {
		t.Fatalf("tokens remaining after sweep = %d, want 0", count)
	}
}

func TestRecoveryRequestRequiresAccountID(t *testing.T) {
	f := newRecoveryFixture()

	if _, _, err := f.service.Request(context.Background(), "", domain.RecoveryPurposePasswordReset); err == nil {
		t.Fatal("expected error for empty account id")
	}
}
