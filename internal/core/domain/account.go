package domain

import (
	"strings"
	"time"
)

// AccountStatus captures the lifecycle state of an account.
type AccountStatus string

const (
	// AccountStatusPending marks an account that has registered but not yet
	// verified its email address. Pending accounts may still log in.
	AccountStatusPending AccountStatus = "pending"
	// AccountStatusActive marks a verified account.
	AccountStatusActive AccountStatus = "active"
	// AccountStatusBanned marks an account barred from authenticating.
	AccountStatusBanned AccountStatus = "banned"
)

// Role is the coarse authorization level attached to an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// CanManageAccounts reports whether the role may act on other accounts.
func (r Role) CanManageAccounts() bool {
	return r == RoleAdmin
}

// Account is the credential-bearing identity record.
type Account struct {
	ID              string
	Email           string
	PasswordHash    string
	Role            Role
	Status          AccountStatus
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	LastLoginAt     *time.Time
}

// Sanitized returns a copy with the credential material stripped, suitable
// for API responses and event payloads.
func (a Account) Sanitized() Account {
	a.PasswordHash = ""
	return a
}

// NormalizeEmail lowercases and trims an email address so lookups and
// lockout keys are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
