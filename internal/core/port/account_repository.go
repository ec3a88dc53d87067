package port

import (
	"context"
	"time"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) error
	MarkEmailVerified(ctx context.Context, id string, verifiedAt time.Time) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}
