package tenant

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ronittamrakar/xordon/internal/apperr"
	"github.com/ronittamrakar/xordon/internal/models"
	"github.com/ronittamrakar/xordon/internal/observ"
	"github.com/ronittamrakar/xordon/internal/rbac"
	"github.com/ronittamrakar/xordon/internal/repository"
)

// allowedSetTTL bounds the per-process memo of allowed company sets. The
// memo only saves round trips inside a request batch; correctness never
// depends on it, so a short lifetime is the right trade.
const allowedSetTTL = time.Minute

// Resolver computes the tenant Context for authenticated requests.
type Resolver struct {
	workspaces repository.WorkspaceStore
	companies  repository.CompanyStore
	users      repository.UserStore
	audit      *observ.AuditSink
	log        *zap.Logger

	mu   sync.Mutex
	memo map[string]memoEntry
	now  func() time.Time
}

type memoEntry struct {
	ids       []int64
	expiresAt time.Time
}

func NewResolver(
	workspaces repository.WorkspaceStore,
	companies repository.CompanyStore,
	users repository.UserStore,
	audit *observ.AuditSink,
	log *zap.Logger,
) *Resolver {
	return &Resolver{
		workspaces: workspaces,
		companies:  companies,
		users:      users,
		audit:      audit,
		log:        log,
		memo:       make(map[string]memoEntry),
		now:        time.Now,
	}
}

// ResolveOrFail produces the full tenant context for userID, or fails with
// ErrForbidden. There is no partial success: either every field of the
// returned Context is resolved and consistent, or the request dies here.
//
// Workspace selection order: explicit slug, then the X-Workspace-Id
// header (positive integer, and only if the user is actually a member of
// it), then the membership where the user is owner, then the oldest
// membership. A header naming a workspace the user is not in simply falls
// through: it selects nothing rather than erroring, matching how slugs
// the user cannot see behave.
func (r *Resolver) ResolveOrFail(ctx context.Context, userID int64, hints Hints) (*Context, error) {
	membership, err := r.resolveMembership(ctx, userID, hints)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, fmt.Errorf(
			"%w: no workspace membership; supply a workspace hint or ask an admin for access",
			apperr.ErrForbidden,
		)
	}

	role := rbac.Role(membership.Role)
	allowed, err := r.allowedCompanyIDs(ctx, userID, membership.WorkspaceID, role)
	if err != nil {
		return nil, err
	}

	tc := &Context{
		UserID:            userID,
		WorkspaceID:       membership.WorkspaceID,
		WorkspaceName:     membership.WorkspaceName,
		Slug:              membership.Slug,
		Role:              role,
		AllowedCompanyIDs: allowed,
	}

	if user, err := r.users.GetByID(ctx, userID); err == nil && user != nil {
		tc.AccountType = user.AccountType
	}

	if err := r.resolveActiveCompany(ctx, tc, hints); err != nil {
		return nil, err
	}

	return tc, nil
}

func (r *Resolver) resolveMembership(ctx context.Context, userID int64, hints Hints) (*models.Membership, error) {
	if hints.Slug != "" {
		m, err := r.workspaces.MembershipBySlug(ctx, userID, hints.Slug)
		if err != nil {
			return nil, fmt.Errorf("resolve workspace by slug: %w", err)
		}
		if m != nil {
			return m, nil
		}
	}

	if id, ok := parsePositiveID(hints.WorkspaceID); ok {
		m, err := r.workspaces.MembershipByWorkspace(ctx, userID, id)
		if err != nil {
			return nil, fmt.Errorf("resolve workspace by header: %w", err)
		}
		if m != nil {
			return m, nil
		}
	}

	m, err := r.workspaces.DefaultMembership(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve default workspace: %w", err)
	}
	return m, nil
}

// allowedCompanyIDs applies the role-dependent visibility rules, memoized
// per (user, workspace, role) so one request's control flow hits storage
// at most once.
//
// Owners and admins see every company in the workspace. Lower roles see
// explicitly granted companies, falling back to legacy-owned rows only
// when no grants exist at all.
func (r *Resolver) allowedCompanyIDs(ctx context.Context, userID, workspaceID int64, role rbac.Role) ([]int64, error) {
	key := fmt.Sprintf("%d:%d:%s", userID, workspaceID, role)

	r.mu.Lock()
	if entry, ok := r.memo[key]; ok && r.now().Before(entry.expiresAt) {
		ids := entry.ids
		r.mu.Unlock()
		return ids, nil
	}
	r.mu.Unlock()

	var ids []int64
	if role.AtLeast(rbac.RoleAdmin) {
		companies, err := r.companies.ListByWorkspace(ctx, workspaceID)
		if err != nil {
			return nil, fmt.Errorf("list workspace companies: %w", err)
		}
		ids = make([]int64, 0, len(companies))
		for _, c := range companies {
			ids = append(ids, c.ID)
		}
	} else {
		granted, err := r.companies.GrantedIDs(ctx, workspaceID, userID)
		if err != nil {
			return nil, fmt.Errorf("list granted companies: %w", err)
		}
		ids = granted
		if len(ids) == 0 {
			owned, err := r.companies.LegacyOwnedIDs(ctx, workspaceID, userID)
			if err != nil {
				return nil, fmt.Errorf("list legacy-owned companies: %w", err)
			}
			ids = owned
		}
	}

	r.mu.Lock()
	r.memo[key] = memoEntry{ids: ids, expiresAt: r.now().Add(allowedSetTTL)}
	r.mu.Unlock()

	return ids, nil
}

// resolveActiveCompany selects the company for this request. An explicit
// header naming a company outside the allowed set is never corrected
// silently: it is recorded as a potential cross-tenant access attempt and
// the request fails. The fallbacks (legacy client header, then the first
// allowed company, then none) only apply when no explicit header was
// sent.
func (r *Resolver) resolveActiveCompany(ctx context.Context, tc *Context, hints Hints) error {
	header := hints.CompanyID
	if header == "" {
		header = hints.LegacyClientID
	}

	if header != "" {
		id, ok := parsePositiveID(header)
		if !ok || !tc.AllowsCompany(id) {
			r.audit.CompanyDenied(ctx, tc.UserID, tc.WorkspaceID, id, tc.AllowedCompanyIDs)
			return fmt.Errorf("%w: company not accessible", apperr.ErrForbidden)
		}
		tc.ActiveCompanyID = id
	} else if len(tc.AllowedCompanyIDs) > 0 {
		tc.ActiveCompanyID = tc.AllowedCompanyIDs[0]
	}

	if tc.ActiveCompanyID != 0 {
		company, err := r.companies.GetByID(ctx, tc.WorkspaceID, tc.ActiveCompanyID)
		if err != nil {
			// Convenience load only; the context is complete without it.
			r.log.Warn("failed to load active company record",
				zap.Int64("company_id", tc.ActiveCompanyID),
				zap.Error(err),
			)
		} else {
			tc.Company = company
		}
	}

	return nil
}

// InvalidateAllowedCompanies drops the memoized set for a user/workspace
// pair, for callers that just changed grants and want the next resolution
// to see them.
func (r *Resolver) InvalidateAllowedCompanies(userID, workspaceID int64) {
	prefix := fmt.Sprintf("%d:%d:", userID, workspaceID)
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.memo {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(r.memo, key)
		}
	}
}

func parsePositiveID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
