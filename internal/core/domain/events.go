package domain

import "time"

// AccountRegisteredEvent is published when a new account is created and a
// verification token has been issued for it.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	Email        string
	Status       AccountStatus
	RegisteredAt time.Time
}

// PasswordResetRequestedEvent is published when a reset token is issued so
// downstream delivery can pick it up.
type PasswordResetRequestedEvent struct {
	EventID           string
	AccountID         string
	RequestedAt       time.Time
	MaskedDestination string
	ExpiresAt         time.Time
	IPAddress         *string
}

// PasswordChangedEvent is published after a credential update, whether via
// reset confirmation or an authenticated change.
type PasswordChangedEvent struct {
	EventID         string
	AccountID       string
	ChangedAt       time.Time
	SessionsRevoked int
}

// EmailVerifiedEvent is published when an account transitions to active
// through email verification.
type EmailVerifiedEvent struct {
	EventID    string
	AccountID  string
	Email      string
	VerifiedAt time.Time
}

// SessionRevokedEvent is published on logout or bulk revocation.
type SessionRevokedEvent struct {
	EventID   string
	SessionID string
	AccountID string
	RevokedAt time.Time
	Reason    string
}

// AccountStatusChangedEvent is published when an administrator transitions
// an account between statuses, for example a ban or a reinstatement.
type AccountStatusChangedEvent struct {
	EventID         string
	AccountID       string
	ChangedBy       string
	OldStatus       AccountStatus
	NewStatus       AccountStatus
	ChangedAt       time.Time
	SessionsRevoked int
}
