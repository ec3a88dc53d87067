package port

import (
	"context"
	"time"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
)

// StatusChangeResult reports the cleanup applied alongside a status
// transition.
type StatusChangeResult struct {
	SessionsRevoked int
	TokensPurged    int
}

// AccountStatusStore applies an administrative status transition together
// with the cleanup it implies. A ban revokes every active session and purges
// outstanding recovery tokens in the same storage transaction, so a banned
// account cannot keep a live refresh token or finish a pending reset.
type AccountStatusStore interface {
	SetStatus(ctx context.Context, accountID string, status domain.AccountStatus, at time.Time) (StatusChangeResult, error)
}
