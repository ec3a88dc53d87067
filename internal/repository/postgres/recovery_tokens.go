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

const recoveryTokensTable = "auth.recovery_tokens"

var recoveryTokenColumns = []string{
	"id",
	"account_id",
	"token_hash",
	"purpose",
	"created_at",
	"expires_at",
	"consumed_at",
}

// RecoveryTokenRepository implements port.RecoveryTokenRepository using
// PostgreSQL.
type RecoveryTokenRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRecoveryTokenRepository constructs a recovery token repository backed by
// any executor that satisfies pgExecutor.
func NewRecoveryTokenRepository(exec pgExecutor) *RecoveryTokenRepository {
	repo := &RecoveryTokenRepository{
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
func (r *RecoveryTokenRepository) WithTx(tx pgx.Tx) *RecoveryTokenRepository {
	if tx == nil {
		return r
	}
	return &RecoveryTokenRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new recovery token record.
func (r *RecoveryTokenRepository) Create(ctx context.Context, token domain.RecoveryToken) error {
	sql, args, err := r.builder.Insert(recoveryTokensTable).
		Columns(recoveryTokenColumns...).
		Values(
			token.ID,
			token.AccountID,
			token.TokenHash,
			token.Purpose,
			token.CreatedAt,
			token.ExpiresAt,
			token.ConsumedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert recovery token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert recovery token: %w", err)
	}

	return nil
}

// GetByTokenHash retrieves a recovery token by its hashed value.
func (r *RecoveryTokenRepository) GetByTokenHash(ctx context.Context, hash string) (*domain.RecoveryToken, error) {
	stmt, args, err := r.builder.Select(recoveryTokenColumns...).
		From(recoveryTokensTable).
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select recovery token sql: %w", err)
	}

	var token domain.RecoveryToken
	row := r.exec.QueryRow(ctx, stmt, args...)
	if err := row.Scan(
		&token.ID,
		&token.AccountID,
		&token.TokenHash,
		&token.Purpose,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.ConsumedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan recovery token: %w", err)
	}

	return &token, nil
}

// ConsumeIfFresh stamps consumed_at only when the token is unconsumed and
// unexpired. Zero matched rows (already consumed, expired, or unknown)
// reports ErrNotFound so double submission races resolve to one winner.
func (r *RecoveryTokenRepository) ConsumeIfFresh(ctx context.Context, tokenID string, at time.Time) error {
	sql, args, err := r.builder.Update(recoveryTokensTable).
		Set("consumed_at", at).
		Where(squirrel.Eq{"id": tokenID}).
		Where("consumed_at IS NULL").
		Where(squirrel.Gt{"expires_at": at}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume recovery token sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("consume recovery token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteForAccount removes every recovery token belonging to the account,
// regardless of purpose, and returns how many rows went away.
func (r *RecoveryTokenRepository) DeleteForAccount(ctx context.Context, accountID string) (int, error) {
	sql, args, err := r.builder.Delete(recoveryTokensTable).
		Where(squirrel.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete account tokens sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete account tokens: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// DeleteExpired removes strictly-expired tokens and returns the count.
func (r *RecoveryTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	sql, args, err := r.builder.Delete(recoveryTokensTable).
		Where(squirrel.Lt{"expires_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired tokens sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

var _ port.RecoveryTokenRepository = (*RecoveryTokenRepository)(nil)
