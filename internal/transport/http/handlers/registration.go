package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
	"github.com/davinaleong/project-pulse-auth/internal/infra/telemetry"
	"github.com/davinaleong/project-pulse-auth/internal/usecase"
)

// RegistrationHandler exposes account registration and email verification
// endpoints.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
	metrics      *telemetry.Provider
}

// NewRegistrationHandler constructs RegistrationHandler. The metrics provider
// may be nil.
func NewRegistrationHandler(registration *usecase.RegistrationService, metrics *telemetry.Provider) *RegistrationHandler {
	return &RegistrationHandler{registration: registration, metrics: metrics}
}

// RegisterRoutes binds the registration routes.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.register)
	r.POST("/verify-email", h.verifyEmail)
}

func (h *RegistrationHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	account, err := h.registration.Register(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already registered"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to register account")
		return
	}

	resp := RegisterResponse{
		Account:              newAccountSummary(account),
		RequiresVerification: account.Status == domain.AccountStatusPending,
	}
	if resp.RequiresVerification {
		resp.Message = "verification email sent"
		h.metrics.RecordRecoveryRequest(string(domain.RecoveryPurposeEmailVerify))
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *RegistrationHandler) verifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	account, err := h.registration.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidOrExpiredToken, Status: http.StatusUnauthorized, Message: "invalid or expired verification token"},
		}, http.StatusInternalServerError, "failed to verify email")
		return
	}

	c.JSON(http.StatusOK, VerifyEmailResponse{
		Message: "Email verified successfully",
		Account: newAccountSummary(account),
	})
}
