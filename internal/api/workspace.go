package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ronittamrakar/xordon/internal/apperr"
	"github.com/ronittamrakar/xordon/internal/middleware"
	"github.com/ronittamrakar/xordon/internal/repository"
	"github.com/ronittamrakar/xordon/internal/tenant"
)

// WorkspaceHandler serves workspace membership listing and creation.
type WorkspaceHandler struct {
	workspaces repository.WorkspaceStore
	resolver   *tenant.Resolver
	log        *zap.Logger
}

func NewWorkspaceHandler(workspaces repository.WorkspaceStore, resolver *tenant.Resolver, log *zap.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{workspaces: workspaces, resolver: resolver, log: log}
}

// List handles GET /v1/workspaces: every workspace the caller belongs
// to, with their role in each.
func (h *WorkspaceHandler) List(c *gin.Context) {
	memberships, err := h.workspaces.ListMemberships(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.log, fmt.Errorf("list memberships: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspaces": memberships})
}

// Members handles GET /v1/members: the roster of the resolved
// workspace. The route sits behind a manager-or-better role gate.
func (h *WorkspaceHandler) Members(c *gin.Context) {
	tc := middleware.GetTenant(c)
	if tc == nil {
		respondError(c, h.log, apperr.ErrUnauthorized)
		return
	}

	roster, err := h.workspaces.ListMembers(c.Request.Context(), tc.WorkspaceID)
	if err != nil {
		respondError(c, h.log, fmt.Errorf("list members: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": roster})
}

type createWorkspaceRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug"`
}

// Create handles POST /v1/workspaces: a new workspace owned by the
// caller, independent of any they already have.
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	membership, err := h.resolver.ProvisionWorkspace(c.Request.Context(), middleware.GetUserID(c), req.Name, req.Slug)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"workspace": membership})
}
