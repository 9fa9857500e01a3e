// Package tenant resolves the per-request tenant context: which workspace
// is active, what role the caller holds in it, and which companies the
// caller may act on.
package tenant

import (
	"slices"

	"github.com/ronittamrakar/xordon/internal/models"
	"github.com/ronittamrakar/xordon/internal/rbac"
)

// Context is the resolved, read-only tenant state for one request. It is
// an explicit value threaded through call signatures. There is no
// process-wide "current tenant", which is what makes multi-tenant tests
// in a single process possible.
//
// Invariant: ActiveCompanyID is zero or an element of AllowedCompanyIDs.
// The resolver enforces this; nothing downstream needs to re-check.
type Context struct {
	UserID      int64
	AccountType string

	WorkspaceID   int64
	WorkspaceName string
	Slug          string
	Role          rbac.Role

	// AllowedCompanyIDs is the full set of companies the caller may act
	// on in this workspace, ascending. Empty means none.
	AllowedCompanyIDs []int64

	// ActiveCompanyID is the company selected for this request, zero when
	// the allowed set is empty.
	ActiveCompanyID int64

	// Company is the loaded active-company record when available. Loading
	// it is a convenience and may fail non-fatally, so this can be nil
	// even when ActiveCompanyID is set.
	Company *models.Company
}

// AllowsCompany reports whether id is in the allowed set.
func (c *Context) AllowsCompany(id int64) bool {
	return slices.Contains(c.AllowedCompanyIDs, id)
}

// Hints are the caller-supplied tenant selectors, raw as received. The
// resolver validates them; nothing else reads them.
type Hints struct {
	// Slug is an explicit workspace slug from the path or query.
	Slug string

	// WorkspaceID is the X-Workspace-Id header value.
	WorkspaceID string

	// CompanyID is the X-Company-Id header value.
	CompanyID string

	// LegacyClientID is the deprecated X-Client-Id header, honored with
	// the same validation as CompanyID.
	LegacyClientID string
}
