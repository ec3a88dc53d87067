package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
	"github.com/davinaleong/project-pulse-auth/internal/core/port"
)

// txBeginner abstracts pgxpool.Pool so the store can run against a mock in
// tests.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountStatusStore implements port.AccountStatusStore. A status change and
// the cleanup a ban implies commit in one transaction.
type AccountStatusStore struct {
	db       txBeginner
	accounts *AccountRepository
	sessions *SessionRepository
	tokens   *RecoveryTokenRepository
}

// NewAccountStatusStore constructs the transactional status store on top of
// the individual repositories.
func NewAccountStatusStore(db txBeginner, accounts *AccountRepository, sessions *SessionRepository, tokens *RecoveryTokenRepository) *AccountStatusStore {
	return &AccountStatusStore{
		db:       db,
		accounts: accounts,
		sessions: sessions,
		tokens:   tokens,
	}
}

// SetStatus transitions the account and, when the new status is banned,
// revokes its active sessions and purges its recovery tokens atomically.
func (s *AccountStatusStore) SetStatus(ctx context.Context, accountID string, status domain.AccountStatus, at time.Time) (port.StatusChangeResult, error) {
	var result port.StatusChangeResult

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin status change tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.accounts.WithTx(tx).UpdateStatus(ctx, accountID, status); err != nil {
		return result, err
	}

	if status == domain.AccountStatusBanned {
		revoked, err := s.sessions.WithTx(tx).RevokeAllForAccount(ctx, accountID, at)
		if err != nil {
			return result, err
		}
		result.SessionsRevoked = revoked

		purged, err := s.tokens.WithTx(tx).DeleteForAccount(ctx, accountID)
		if err != nil {
			return result, err
		}
		result.TokensPurged = purged
	}

	if err := tx.Commit(ctx); err != nil {
		return port.StatusChangeResult{}, fmt.Errorf("commit status change tx: %w", err)
	}

	return result, nil
}

var _ port.AccountStatusStore = (*AccountStatusStore)(nil)
