package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ronittamrakar/xordon/internal/apperr"
	"github.com/ronittamrakar/xordon/internal/middleware"
	"github.com/ronittamrakar/xordon/internal/repository"
)

// MeHandler serves GET /v1/me: the caller's user record plus the tenant
// context the middleware resolved for this request. Clients use it to
// learn which workspace and company a header combination lands on.
type MeHandler struct {
	users repository.UserStore
	log   *zap.Logger
}

func NewMeHandler(users repository.UserStore, log *zap.Logger) *MeHandler {
	return &MeHandler{users: users, log: log}
}

func (h *MeHandler) Me(c *gin.Context) {
	tc := middleware.GetTenant(c)
	if tc == nil {
		respondError(c, h.log, apperr.ErrUnauthorized)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), tc.UserID)
	if err != nil {
		respondError(c, h.log, fmt.Errorf("load user: %w", err))
		return
	}
	if user == nil {
		respondError(c, h.log, fmt.Errorf("%w: user", apperr.ErrNotFound))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
		"tenant": gin.H{
			"workspace_id":        tc.WorkspaceID,
			"workspace_name":      tc.WorkspaceName,
			"workspace_slug":      tc.Slug,
			"role":                tc.Role,
			"allowed_company_ids": tc.AllowedCompanyIDs,
			"active_company_id":   tc.ActiveCompanyID,
		},
	})
}
