package domain

import "time"

// Session represents one active authenticated session, keyed by the hash of
// its opaque refresh token. Rotation revokes the row and issues a successor.
type Session struct {
	ID          string
	AccountID   string
	TokenHash   string
	IP          *string
	UserAgent   *string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
	RotatedFrom *string
}

// Active reports whether the session can still be exchanged at the given
// instant.
func (s Session) Active(at time.Time) bool {
	return s.RevokedAt == nil && at.Before(s.ExpiresAt)
}

// RecoveryPurpose discriminates the flows sharing the single-use token
// engine.
type RecoveryPurpose string

const (
	RecoveryPurposePasswordReset RecoveryPurpose = "password_reset"
	RecoveryPurposeEmailVerify   RecoveryPurpose = "email_verify"
)

// RecoveryToken is a single-use, expiring credential-recovery artifact.
// The raw token is never persisted; only its hash is stored.
type RecoveryToken struct {
	ID         string
	AccountID  string
	TokenHash  string
	Purpose    RecoveryPurpose
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// Usable reports whether the token is still valid for verification at the
// given instant.
func (t RecoveryToken) Usable(at time.Time) bool {
	return t.ConsumedAt == nil && at.Before(t.ExpiresAt)
}
