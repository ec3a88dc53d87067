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

// ErrEmailTaken indicates an account already exists for the address.
var ErrEmailTaken = errors.New("email already registered")

// RegistrationService handles new account onboarding and email verification.
type RegistrationService struct {
	accounts  port.AccountRepository
	recovery  *RecoveryService
	mailer    port.Mailer
	events    port.EventPublisher
	validator *security.PasswordValidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(
	accounts port.AccountRepository,
	recovery *RecoveryService,
	mailer port.Mailer,
	events port.EventPublisher,
	validator *security.PasswordValidator,
	log *zap.Logger,
) *RegistrationService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{
		accounts:  accounts,
		recovery:  recovery,
		mailer:    mailer,
		events:    events,
		validator: validator,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the clock used by the service, primarily for tests.
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Register creates a pending account and issues an email verification token.
func (s *RegistrationService) Register(ctx context.Context, email, password string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.Account{}, fmt.Errorf("email is required")
	}
	if password == "" {
		return domain.Account{}, fmt.Errorf("password is required")
	}

	if err := s.validator.Validate(password); err != nil {
		return domain.Account{}, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return domain.Account{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.AccountStatusPending,
		CreatedAt:    now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return domain.Account{}, err
	}

	raw, _, err := s.recovery.Request(ctx, account.ID, domain.RecoveryPurposeEmailVerify)
	if err != nil {
		return domain.Account{}, fmt.Errorf("issue verification token: %w", err)
	}

	if err := s.mailer.SendEmailVerification(ctx, account.Email, raw); err != nil {
		s.logger.Warn("verification mail dispatch failed",
			zap.String("email", logger.MaskEmail(account.Email)), zap.Error(err))
	}

	s.publishRegistered(ctx, account)
	return account.Sanitized(), nil
}

// VerifyEmail confirms an email verification token: the account transitions
// to active with its verified timestamp stamped, then the token is consumed.
func (s *RegistrationService) VerifyEmail(ctx context.Context, rawToken string) (domain.Account, error) {
	token, err := s.recovery.Verify(ctx, rawToken)
	if err != nil {
		return domain.Account{}, err
	}
	if token.Purpose != domain.RecoveryPurposeEmailVerify {
		return domain.Account{}, ErrInvalidOrExpiredToken
	}

	account, err := s.accounts.GetByID(ctx, token.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrInvalidOrExpiredToken
		}
		return domain.Account{}, fmt.Errorf("lookup account: %w", err)
	}

	now := s.now().UTC()
	if err := s.accounts.MarkEmailVerified(ctx, account.ID, now); err != nil {
		return domain.Account{}, fmt.Errorf("mark email verified: %w", err)
	}

	if _, err := s.recovery.Consume(ctx, rawToken); err != nil {
		return domain.Account{}, err
	}

	account.Status = domain.AccountStatusActive
	account.EmailVerifiedAt = &now

	s.publishEmailVerified(ctx, *account, now)
	return account.Sanitized(), nil
}

func (s *RegistrationService) publishRegistered(ctx context.Context, account domain.Account) {
	if s.events == nil {
		return
	}

	event := domain.AccountRegisteredEvent{
		EventID:      uuid.NewString(),
		AccountID:    account.ID,
		Email:        account.Email,
		Status:       account.Status,
		RegisteredAt: account.CreatedAt,
	}

	if err := s.events.PublishAccountRegistered(ctx, event); err != nil {
		s.logger.Warn("publish account registered failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}
}

func (s *RegistrationService) publishEmailVerified(ctx context.Context, account domain.Account, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.EmailVerifiedEvent{
		EventID:    uuid.NewString(),
		AccountID:  account.ID,
		Email:      account.Email,
		VerifiedAt: at,
	}

	if err := s.events.PublishEmailVerified(ctx, event); err != nil {
		s.logger.Warn("publish email verified failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}
}
