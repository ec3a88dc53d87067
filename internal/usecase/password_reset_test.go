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

const testNewPassword = "Another-Val1d-Phrase-42"

type resetFixture struct {
	accounts *testAccountRepo
	sessions *testSessionRepo
	tokens   *testRecoveryTokenRepo
	mailer   *testMailer
	events   *testEventPublisher
	recovery *RecoveryService
	service  *PasswordResetService
	account  domain.Account
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()

	hash, err := security.HashPassword(testLoginPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	account := domain.Account{
		ID:           uuid.NewString(),
		Email:        "user@example.com",
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.AccountStatusActive,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	f := &resetFixture{
		accounts: newTestAccountRepo(account),
		sessions: newTestSessionRepo(),
		tokens:   newTestRecoveryTokenRepo(),
		mailer:   newTestMailer(),
		events:   &testEventPublisher{},
		account:  account,
	}
	f.recovery = NewRecoveryService(f.tokens, newTestRateLimitStore(), nil)
	f.service = NewPasswordResetService(f.accounts, f.sessions, f.recovery, f.mailer, f.events, nil, nil)
	return f
}

func TestRequestResetUnknownEmailIsSilent(t *testing.T) {
	f := newResetFixture(t)

	if err := f.service.RequestReset(context.Background(), "nobody@example.com", RequestMeta{}); err != nil {
		t.Fatalf("unknown address must not error, got %v", err)
	}
	if len(f.mailer.resets) != 0 {
		t.Fatal("no mail may be sent for an unknown address")
	}
	if f.tokens.count() != 0 {
		t.Fatal("no token may be issued for an unknown address")
	}
}

func TestRequestResetIssuesTokenAndMail(t *testing.T) {
	f := newResetFixture(t)

	if err := f.service.RequestReset(context.Background(), f.account.Email, RequestMeta{IP: "203.0.113.9"}); err != nil {
		t.Fatalf("RequestReset returned error: %v", err)
	}

	raw, ok := f.mailer.resets[f.account.Email]
	if !ok || raw == "" {
		t.Fatal("expected a reset token to be mailed")
	}

	token, err := f.recovery.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("mailed token failed verification: %v", err)
	}
	if token.Purpose != domain.RecoveryPurposePasswordReset {
		t.Fatalf("purpose = %q, want %q", token.Purpose, domain.RecoveryPurposePasswordReset)
	}

	if len(f.events.resetRequested) != 1 {
		t.Fatalf("reset requested events = %d, want 1", len(f.events.resetRequested))
	}
	if f.events.resetRequested[0].MaskedDestination == f.account.Email {
		t.Fatal("event must carry a masked destination, not the raw address")
	}
}

func TestRequestResetRateLimitPropagates(t *testing.T) {
	f := newResetFixture(t)
	f.recovery.WithRateLimit(2, time.Hour)

	for i := 0; i < 2; i++ {
		if err := f.service.RequestReset(context.Background(), f.account.Email, RequestMeta{}); err != nil {
			t.Fatalf("request %d returned error: %v", i+1, err)
		}
	}

	err := f.service.RequestReset(context.Background(), f.account.Email, RequestMeta{})
	var limitErr *RateLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected RateLimitExceededError, got %v", err)
	}
}

func TestConfirmResetAppliesPasswordAndRevokesSessions(t *testing.T) {
	f := newResetFixture(t)

	// An active session that must not survive the reset.
	tokens := NewTokenService(testTokenConfig(), f.accounts, f.sessions)
	pair, _, err := tokens.Issue(context.Background(), f.account, nil, nil)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if err := f.service.RequestReset(context.Background(), f.account.Email, RequestMeta{}); err != nil {
		t.Fatalf("RequestReset returned error: %v", err)
	}
	raw := f.mailer.resets[f.account.Email]

	if err := f.service.ConfirmReset(context.Background(), raw, testNewPassword); err != nil {
		t.Fatalf("ConfirmReset returned error: %v", err)
	}

	stored, err := f.accounts.GetByID(context.Background(), f.account.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	ok, err := security.VerifyPassword(testNewPassword, stored.PasswordHash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if !ok {
		t.Fatal("new password does not verify against the stored hash")
	}

	if count := f.sessions.activeCount(f.account.ID, time.Now().UTC()); count != 0 {
		t.Fatalf("active sessions after reset = %d, want 0", count)
	}
	if _, _, err := tokens.Rotate(context.Background(), pair.RefreshToken, nil, nil); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("refresh after reset: expected ErrInvalidRefreshToken, got %v", err)
	}

	if f.tokens.count() != 0 {
		t.Fatal("outstanding recovery tokens must be purged after a reset")
	}
	if len(f.events.passwordChanged) != 1 {
		t.Fatalf("password changed events = %d, want 1", len(f.events.passwordChanged))
	}
	if f.events.passwordChanged[0].SessionsRevoked != 1 {
		t.Fatalf("sessions revoked in event = %d, want 1", f.events.passwordChanged[0].SessionsRevoked)
	}
}

func TestConfirmResetTokenIsSingleUse(t *testing.T) {
	f := newResetFixture(t)

	if err := f.service.RequestReset(context.Background(), f.account.Email, RequestMeta{}); err != nil {
		t.Fatalf("RequestReset returned error: %v", err)
	}
	raw := f.mailer.resets[f.account.Email]

	if err := f.service.ConfirmReset(context.Background(), raw, testNewPassword); err != nil {
		t.Fatalf("ConfirmReset returned error: %v", err)
	}
	if err := f.service.ConfirmReset(context.Background(), raw, testNewPassword); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("replayed token: expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestConfirmResetRejectsWeakPassword(t *testing.T) {
	f := newResetFixture(t)

	if err := f.service.RequestReset(context.Background(), f.account.Email, RequestMeta{}); err != nil {
		t.Fatalf("RequestReset returned error: %v", err)
	}
	raw := f.mailer.resets[f.account.Email]

	if err := f.service.ConfirmReset(context.Background(), raw, "password"); !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation, got %v", err)
	}

	// Policy failure must not burn the token.
	if err := f.service.ConfirmReset(context.Background(), raw, testNewPassword); err != nil {
		t.Fatalf("ConfirmReset with valid password returned error: %v", err)
	}
}

func TestConfirmResetRejectsWrongPurpose(t *testing.T) {
	f := newResetFixture(t)

	raw, _, err := f.recovery.Request(context.Background(), f.account.ID, domain.RecoveryPurposeEmailVerify)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}

	if err := f.service.ConfirmReset(context.Background(), raw, testNewPassword); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("verification token used for reset: expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestConfirmResetRejectsUnknownToken(t *testing.T) {
	f := newResetFixture(t)

	if err := f.service.ConfirmReset(context.Background(), "no-such-token", testNewPassword); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
}
