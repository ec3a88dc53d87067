package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
	"github.com/davinaleong/project-pulse-auth/internal/transport/http/middleware"
	"github.com/davinaleong/project-pulse-auth/internal/usecase"
)

// AdminHandler exposes administrative account management endpoints. The
// route group it binds to must already enforce authentication and the admin
// role.
type AdminHandler struct {
	admin *usecase.AdminService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(admin *usecase.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// RegisterRoutes binds the account management routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.PATCH("/accounts/:id/status", h.updateStatus)
}

func (h *AdminHandler) updateStatus(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req AccountStatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "status is required"))
		return
	}

	status := domain.AccountStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	account, err := h.admin.SetAccountStatus(c.Request.Context(), actorID, c.Param("id"), status)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUnsupportedStatus, Status: http.StatusBadRequest, Message: "status must be active or banned"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
			{Err: usecase.ErrSelfStatusChange, Status: http.StatusConflict, Message: "cannot change own account status"},
		}, http.StatusInternalServerError, "failed to update account status")
		return
	}

	c.JSON(http.StatusOK, newAccountSummary(account))
}
