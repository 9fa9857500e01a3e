package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ronittamrakar/xordon/internal/apperr"
	"github.com/ronittamrakar/xordon/internal/guard"
	"github.com/ronittamrakar/xordon/internal/middleware"
	"github.com/ronittamrakar/xordon/internal/models"
	"github.com/ronittamrakar/xordon/internal/repository"
)

// CompanyHandler serves the companies visible inside the resolved
// tenant context. Visibility is whatever the resolver computed; the
// handler never widens it.
type CompanyHandler struct {
	companies repository.CompanyStore
	guard     *guard.Guard
	log       *zap.Logger
}

func NewCompanyHandler(companies repository.CompanyStore, g *guard.Guard, log *zap.Logger) *CompanyHandler {
	return &CompanyHandler{companies: companies, guard: g, log: log}
}

// List handles GET /v1/companies: the companies in the caller's allowed
// set, in the resolver's order.
func (h *CompanyHandler) List(c *gin.Context) {
	tc := middleware.GetTenant(c)
	if tc == nil {
		respondError(c, h.log, apperr.ErrUnauthorized)
		return
	}
	ctx := c.Request.Context()

	companies := make([]models.Company, 0, len(tc.AllowedCompanyIDs))
	for _, id := range tc.AllowedCompanyIDs {
		company, err := h.companies.GetByID(ctx, tc.WorkspaceID, id)
		if err != nil {
			respondError(c, h.log, fmt.Errorf("load company %d: %w", id, err))
			return
		}
		if company != nil {
			companies = append(companies, *company)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"companies":         companies,
		"active_company_id": tc.ActiveCompanyID,
	})
}

// Get handles GET /v1/companies/:id. The ownership guard runs first, so
// an id from another workspace 404s without revealing whether it exists.
func (h *CompanyHandler) Get(c *gin.Context) {
	tc := middleware.GetTenant(c)
	if tc == nil {
		respondError(c, h.log, apperr.ErrUnauthorized)
		return
	}
	ctx := c.Request.Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondBadRequest(c, fmt.Errorf("invalid company id"))
		return
	}

	if err := h.guard.RequireOwnership(ctx, tc, guard.Companies, id); err != nil {
		respondError(c, h.log, err)
		return
	}
	if !tc.AllowsCompany(id) {
		// In the workspace but not granted to this caller. Same outward
		// answer as not existing.
		respondError(c, h.log, fmt.Errorf("%w: company not found", apperr.ErrNotFound))
		return
	}

	company, err := h.companies.GetByID(ctx, tc.WorkspaceID, id)
	if err != nil {
		respondError(c, h.log, fmt.Errorf("load company: %w", err))
		return
	}
	if company == nil {
		respondError(c, h.log, fmt.Errorf("%w: company not found", apperr.ErrNotFound))
		return
	}

	c.JSON(http.StatusOK, gin.H{"company": company})
}
