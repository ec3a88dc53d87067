package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
	"github.com/davinaleong/project-pulse-auth/internal/core/port"
	"github.com/davinaleong/project-pulse-auth/internal/infra/logger"
	"github.com/davinaleong/project-pulse-auth/internal/infra/security"
	"github.com/davinaleong/project-pulse-auth/internal/repository"
)

// ErrPasswordPolicyViolation indicates the new password fails the complexity
// policy.
var ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")

// PasswordResetService coordinates the password reset request and
// confirmation flows on top of the shared recovery token engine.
type PasswordResetService struct {
	accounts  port.AccountRepository
	sessions  port.SessionRepository
	recovery  *RecoveryService
	mailer    port.Mailer
	events    port.EventPublisher
	validator *security.PasswordValidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(
	accounts port.AccountRepository,
	sessions port.SessionRepository,
	recovery *RecoveryService,
	mailer port.Mailer,
	events port.EventPublisher,
	validator *security.PasswordValidator,
	log *zap.Logger,
) *PasswordResetService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordResetService{
		accounts:  accounts,
		sessions:  sessions,
		recovery:  recovery,
		mailer:    mailer,
		events:    events,
		validator: validator,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the clock used by the service, primarily for tests.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RequestReset issues a reset token for the address if an account exists.
// An unknown address is a silent no-op so responses cannot be used to
// enumerate accounts; a RateLimitExceededError propagates for internal
// callers but must still render as the generic success externally.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string, meta RequestMeta) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("password reset requested for unknown address",
				zap.String("email", logger.MaskEmail(email)))
			return nil
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	raw, token, err := s.recovery.Request(ctx, account.ID, domain.RecoveryPurposePasswordReset)
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, account.Email, raw); err != nil {
		s.logger.Warn("password reset mail dispatch failed",
			zap.String("email", logger.MaskEmail(account.Email)), zap.Error(err))
	}

	s.publishResetRequested(ctx, account, token, meta)
	return nil
}

// ConfirmReset finalizes a reset: it validates the token, applies the new
// password, consumes the token, purges the account's remaining recovery
// tokens, and revokes every active session.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, rawToken, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("new password is required")
	}
	if err := s.validator.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	token, err := s.recovery.Verify(ctx, rawToken)
	if err != nil {
		return err
	}
	if token.Purpose != domain.RecoveryPurposePasswordReset {
		return ErrInvalidOrExpiredToken
	}

	account, err := s.accounts.GetByID(ctx, token.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	now := s.now().UTC()
	if err := s.accounts.UpdatePassword(ctx, account.ID, hash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("update password: %w", err)
	}

	if _, err := s.recovery.Consume(ctx, rawToken); err != nil {
		return err
	}

	if _, err := s.recovery.tokens.DeleteForAccount(ctx, account.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("purge outstanding recovery tokens failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}

	revoked := 0
	if count, err := s.sessions.RevokeAllForAccount(ctx, account.ID, now); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("revoke sessions failed", zap.String("account_id", account.ID), zap.Error(err))
	} else {
		revoked = count
	}

	s.publishPasswordChanged(ctx, account.ID, now, revoked)
	return nil
}

func (s *PasswordResetService) publishResetRequested(ctx context.Context, account *domain.Account, token *domain.RecoveryToken, meta RequestMeta) {
	if s.events == nil || account == nil || token == nil {
		return
	}

	event := domain.PasswordResetRequestedEvent{
		EventID:           uuid.NewString(),
		AccountID:         account.ID,
		RequestedAt:       s.now().UTC(),
		MaskedDestination: logger.MaskEmail(account.Email),
		ExpiresAt:         token.ExpiresAt,
		IPAddress:         meta.ipPtr(),
	}

	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		s.logger.Warn("publish password reset requested failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}
}

func (s *PasswordResetService) publishPasswordChanged(ctx context.Context, accountID string, at time.Time, sessionsRevoked int) {
	if s.events == nil {
		return
	}

	event := domain.PasswordChangedEvent{
		EventID:         uuid.NewString(),
		AccountID:       accountID,
		ChangedAt:       at,
		SessionsRevoked: sessionsRevoked,
	}

	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed failed",
			zap.String("account_id", accountID), zap.Error(err))
	}
}
