package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davinaleong/project-pulse-auth/internal/infra/telemetry"
	"github.com/davinaleong/project-pulse-auth/internal/transport/http/middleware"
	"github.com/davinaleong/project-pulse-auth/internal/usecase"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth    *usecase.AuthService
	metrics *telemetry.Provider
}

// NewAuthHandler constructs AuthHandler. The metrics provider may be nil.
func NewAuthHandler(auth *usecase.AuthService, metrics *telemetry.Provider) *AuthHandler {
	return &AuthHandler{auth: auth, metrics: metrics}
}

// RegisterRoutes binds authentication routes, applying optional middleware
// ahead of the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	if len(loginMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
		chain = append(chain, h.login)
		r.POST("/login", chain...)
	} else {
		r.POST("/login", h.login)
	}

	r.POST("/refresh", h.refresh)
	r.POST("/logout", middleware.RequireAuth(h.auth), h.logout)
	r.GET("/me", middleware.RequireAuth(h.auth), h.me)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	meta := requestMeta(c)
	result, err := h.auth.Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password, meta)
	if err != nil {
		h.metrics.RecordLogin(loginOutcome(err))
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
			{Err: usecase.ErrAccountLocked, Status: http.StatusLocked, Message: "account temporarily locked"},
			{Err: usecase.ErrAccountBanned, Status: http.StatusForbidden, Message: "account banned"},
		}, http.StatusInternalServerError, "authentication failed")
		return
	}

	h.metrics.RecordLogin("success")
	c.JSON(http.StatusOK, h.loginResponse(result))
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	meta := requestMeta(c)
	result, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, meta)
	if err != nil {
		h.metrics.RecordRotation("rejected")
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
		}, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	h.metrics.RecordRotation("success")
	c.JSON(http.StatusOK, h.loginResponse(result))
}

func (h *AuthHandler) logout(c *gin.Context) {
	token := accessTokenFromContext(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrExpiredAccessToken, Status: http.StatusUnauthorized, Message: "access token expired"},
			{Err: usecase.ErrInvalidAccessToken, Status: http.StatusUnauthorized, Message: "invalid access token"},
		}, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) me(c *gin.Context) {
	token := accessTokenFromContext(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	account, err := h.auth.CurrentUser(c.Request.Context(), token)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrExpiredAccessToken, Status: http.StatusUnauthorized, Message: "access token expired"},
			{Err: usecase.ErrInvalidAccessToken, Status: http.StatusUnauthorized, Message: "invalid access token"},
		}, http.StatusInternalServerError, "failed to resolve account")
		return
	}

	c.JSON(http.StatusOK, newAccountSummary(account))
}

func (h *AuthHandler) loginResponse(result *usecase.LoginResult) LoginResponse {
	return LoginResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    h.computeExpiresIn(result.Tokens.AccessToken),
		Account:      newAccountSummary(result.Account),
	}
}

func (h *AuthHandler) computeExpiresIn(token string) int {
	claims, err := h.auth.ParseAccessToken(token)
	if err != nil || claims == nil || claims.ExpiresAt == nil {
		return 0
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return 0
	}

	return int(remaining.Seconds())
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, usecase.ErrAccountLocked):
		return "locked"
	case errors.Is(err, usecase.ErrAccountBanned):
		return "banned"
	default:
		return "error"
	}
}

func requestMeta(c *gin.Context) usecase.RequestMeta {
	return usecase.RequestMeta{
		IP:        strings.TrimSpace(c.ClientIP()),
		UserAgent: strings.TrimSpace(c.Request.UserAgent()),
	}
}

func accessTokenFromContext(c *gin.Context) string {
	raw, exists := c.Get("access_token")
	if !exists {
		return ""
	}

	token, ok := raw.(string)
	if !ok {
		return ""
	}

	return token
}
