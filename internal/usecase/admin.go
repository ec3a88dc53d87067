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
	"github.com/davinaleong/project-pulse-auth/internal/repository"
)

var (
	// ErrAccountNotFound indicates the target account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrSelfStatusChange indicates an administrator tried to change the
	// status of their own account. Self-service bans would strand the last
	// admin, so the transition must come from a different account.
	ErrSelfStatusChange = errors.New("cannot change own account status")
	// ErrUnsupportedStatus indicates a status outside the administrative
	// transitions. Pending is reachable only through registration.
	ErrUnsupportedStatus = errors.New("unsupported account status")
)

// AdminService handles administrative account management: banning an account
// and reinstating it.
type AdminService struct {
	accounts port.AccountRepository
	store    port.AccountStatusStore
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewAdminService constructs an AdminService.
func NewAdminService(accounts port.AccountRepository, store port.AccountStatusStore, events port.EventPublisher, log *zap.Logger) *AdminService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminService{
		accounts: accounts,
		store:    store,
		events:   events,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides the clock used by the service, primarily for tests.
func (s *AdminService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// SetAccountStatus transitions an account to active or banned on behalf of
// the acting administrator. A ban revokes the account's sessions and purges
// its recovery tokens in the same transaction. Repeating the current status
// is a no-op and publishes nothing.
func (s *AdminService) SetAccountStatus(ctx context.Context, actorID, accountID string, status domain.AccountStatus) (domain.Account, error) {
	if status != domain.AccountStatusActive && status != domain.AccountStatusBanned {
		return domain.Account{}, ErrUnsupportedStatus
	}
	if accountID == "" {
		return domain.Account{}, ErrAccountNotFound
	}
	if actorID != "" && actorID == accountID {
		return domain.Account{}, ErrSelfStatusChange
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("load account: %w", err)
	}

	if account.Status == status {
		return account.Sanitized(), nil
	}

	at := s.now().UTC()
	result, err := s.store.SetStatus(ctx, accountID, status, at)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("set account status: %w", err)
	}

	logger.WithContext(ctx).Info("account status changed",
		zap.String("account_id", accountID),
		zap.String("changed_by", actorID),
		zap.String("old_status", string(account.Status)),
		zap.String("new_status", string(status)),
		zap.Int("sessions_revoked", result.SessionsRevoked),
	)

	s.publishStatusChanged(ctx, actorID, *account, status, at, result.SessionsRevoked)

	account.Status = status
	return account.Sanitized(), nil
}

func (s *AdminService) publishStatusChanged(ctx context.Context, actorID string, account domain.Account, status domain.AccountStatus, at time.Time, sessionsRevoked int) {
	if s.events == nil {
		return
	}

	event := domain.AccountStatusChangedEvent{
		EventID:         uuid.NewString(),
		AccountID:       account.ID,
		ChangedBy:       actorID,
		OldStatus:       account.Status,
		NewStatus:       status,
		ChangedAt:       at,
		SessionsRevoked: sessionsRevoked,
	}
	if err := s.events.PublishAccountStatusChanged(ctx, event); err != nil {
		s.logger.Warn("failed to publish account status change",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}
}
