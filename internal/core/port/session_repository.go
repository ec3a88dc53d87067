package port

import (
	"context"
	"time"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
)

// SessionRepository deals with refresh-token session storage. RevokeIfActive
// is a conditional update: it succeeds exactly once per session, so two
// requests racing on the same refresh token cannot both rotate it.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	GetByTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	RevokeIfActive(ctx context.Context, sessionID string, at time.Time) error
	RevokeAllForAccount(ctx context.Context, accountID string, at time.Time) (int, error)
}
