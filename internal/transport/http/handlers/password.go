package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
	"github.com/davinaleong/project-pulse-auth/internal/infra/telemetry"
	"github.com/davinaleong/project-pulse-auth/internal/transport/http/middleware"
	"github.com/davinaleong/project-pulse-auth/internal/usecase"
)

const resetAcceptedMessage = "If the account exists, reset instructions have been sent"

// PasswordHandler exposes the password reset endpoints.
type PasswordHandler struct {
	reset   *usecase.PasswordResetService
	metrics *telemetry.Provider
	logger  *zap.Logger
}

// NewPasswordHandler constructs PasswordHandler. The metrics provider may be
// nil.
func NewPasswordHandler(reset *usecase.PasswordResetService, metrics *telemetry.Provider, log *zap.Logger) *PasswordHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordHandler{reset: reset, metrics: metrics, logger: log}
}

// RegisterRoutes binds password reset routes, applying optional middleware
// ahead of the request handler.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, requestMiddlewares ...gin.HandlerFunc) {
	if len(requestMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, requestMiddlewares...)
		chain = append(chain, h.requestReset)
		r.POST("/request", chain...)
	} else {
		r.POST("/request", h.requestReset)
	}

	r.POST("/confirm", h.confirmReset)
}

// requestReset always renders the generic accepted response: unknown
// addresses, rate-limited accounts, and successful issuance are
// indistinguishable to the caller.
func (h *PasswordHandler) requestReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password reset request"))
		return
	}

	meta := requestMeta(c)
	if err := h.reset.RequestReset(c.Request.Context(), strings.TrimSpace(req.Email), meta); err != nil {
		var rateErr *usecase.RateLimitExceededError
		if errors.As(err, &rateErr) {
			h.logger.Info("password reset request rate limited",
				zap.String("trace_id", middleware.GetTraceID(c)),
				zap.Duration("retry_after", rateErr.RetryAfter),
			)
			c.JSON(http.StatusAccepted, MessageResponse{Message: resetAcceptedMessage})
			return
		}

		h.logger.Error("password reset request failed",
			zap.String("trace_id", middleware.GetTraceID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to process reset request"))
		return
	}

	h.metrics.RecordRecoveryRequest(string(domain.RecoveryPurposePasswordReset))
	c.JSON(http.StatusAccepted, MessageResponse{Message: resetAcceptedMessage})
}

func (h *PasswordHandler) confirmReset(c *gin.Context) {
	var req PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset confirmation payload"))
		return
	}

	if err := h.reset.ConfirmReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrInvalidOrExpiredToken, Status: http.StatusUnauthorized, Message: "invalid or expired reset token"},
		}, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password reset successfully"})
}
