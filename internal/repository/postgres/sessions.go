package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
	"github.com/davinaleong/project-pulse-auth/internal/core/port"
	"github.com/davinaleong/project-pulse-auth/internal/repository"
)

const sessionsTable = "auth.sessions"

var sessionColumns = []string{
	"id",
	"account_id",
	"token_hash",
	"ip",
	"user_agent",
	"created_at",
	"expires_at",
	"revoked_at",
	"rotated_from",
}

// SessionRepository implements port.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a session repository backed by any executor
// that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	repo := &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance executing within the provided
// transaction.
func (r *SessionRepository) WithTx(tx pgx.Tx) *SessionRepository {
	if tx == nil {
		return r
	}
	return &SessionRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	sql, args, err := r.builder.Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.AccountID,
			session.TokenHash,
			session.IP,
			session.UserAgent,
			session.CreatedAt,
			session.ExpiresAt,
			session.RevokedAt,
			session.RotatedFrom,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetByTokenHash retrieves a session by its refresh token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	stmt, args, err := r.builder.Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	var session domain.Session
	row := r.exec.QueryRow(ctx, stmt, args...)
	if err := row.Scan(
		&session.ID,
		&session.AccountID,
		&session.TokenHash,
		&session.IP,
		&session.UserAgent,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.RotatedFrom,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return &session, nil
}

// RevokeIfActive stamps revoked_at only when the session is still active.
// Zero matched rows means another request won the race (or the id is
// unknown) and reports ErrNotFound.
func (r *SessionRepository) RevokeIfActive(ctx context.Context, sessionID string, at time.Time) error {
	sql, args, err := r.builder.Update(sessionsTable).
		Set("revoked_at", at).
		Where(squirrel.Eq{"id": sessionID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RevokeAllForAccount revokes every active session of the account and
// returns how many were affected.
func (r *SessionRepository) RevokeAllForAccount(ctx context.Context, accountID string, at time.Time) (int, error) {
	sql, args, err := r.builder.Update(sessionsTable).
		Set("revoked_at", at).
		Where(squirrel.Eq{"account_id": accountID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke account sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke account sessions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
