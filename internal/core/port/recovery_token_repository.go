package port

import (
	"context"
	"time"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
)

// RecoveryTokenRepository persists single-use recovery tokens. ConsumeIfFresh
// is a conditional update on "not yet consumed and not yet expired"; a second
// consumption attempt on the same token reports ErrNotFound.
type RecoveryTokenRepository interface {
	Create(ctx context.Context, token domain.RecoveryToken) error
	GetByTokenHash(ctx context.Context, hash string) (*domain.RecoveryToken, error)
	ConsumeIfFresh(ctx context.Context, tokenID string, at time.Time) error
	DeleteForAccount(ctx context.Context, accountID string) (int, error)
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
