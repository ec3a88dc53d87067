package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for
// debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountSummary describes the account view returned by the API.
type AccountSummary struct {
	ID              string               `json:"id"`
	Email           string               `json:"email"`
	Role            domain.Role          `json:"role"`
	Status          domain.AccountStatus `json:"status"`
	EmailVerifiedAt *time.Time           `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	LastLoginAt     *time.Time           `json:"last_login_at,omitempty"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login or
// refresh.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int            `json:"expires_in"`
	Account      AccountSummary `json:"account"`
}

// RefreshRequest represents the payload to rotate a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// RegisterResponse contains registration results and next steps.
type RegisterResponse struct {
	Account              AccountSummary `json:"account"`
	RequiresVerification bool           `json:"requires_verification"`
	Message              string         `json:"message,omitempty"`
}

// VerifyEmailRequest holds the email verification payload.
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyEmailResponse is returned after a successful verification.
type VerifyEmailResponse struct {
	Message string         `json:"message"`
	Account AccountSummary `json:"account"`
}

// PasswordResetRequest represents a password reset initiation payload.
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// PasswordResetConfirmRequest captures a password reset confirmation payload.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// AccountStatusUpdateRequest carries the administrative status transition.
type AccountStatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// newAccountSummary converts a domain account to an API summary.
func newAccountSummary(account domain.Account) AccountSummary {
	return AccountSummary{
		ID:              account.ID,
		Email:           account.Email,
		Role:            account.Role,
		Status:          account.Status,
		EmailVerifiedAt: account.EmailVerifiedAt,
		CreatedAt:       account.CreatedAt,
		LastLoginAt:     account.LastLoginAt,
	}
}
