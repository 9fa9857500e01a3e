// Package guard answers one question: does this row belong to the
// caller's tenant? Every handler that loads a row by client-supplied id
// goes through it, so a guessed id from another workspace reads exactly
// like an id that does not exist.
package guard

import (
	"context"
	"fmt"

	"github.com/ronittamrakar/xordon/internal/apperr"
	"github.com/ronittamrakar/xordon/internal/rbac"
	"github.com/ronittamrakar/xordon/internal/tenant"
)

// Scope selects which tenant axis a resource table is partitioned on.
type Scope int

const (
	// ScopeWorkspace means rows carry the workspace id directly.
	ScopeWorkspace Scope = iota

	// ScopeCompany means rows carry a company id and inherit the
	// workspace boundary through it. Verification uses the request's
	// active company.
	ScopeCompany
)

// Resource describes one guarded table. The fields are unexported and
// every instance is a package-level value: table and column names never
// come from a caller, so the probe query cannot be steered at runtime.
type Resource struct {
	name          string
	table         string
	scopeColumn   string
	scope         Scope
	creatorColumn string
}

// Name returns the resource's short name, for logs and error text.
func (r Resource) Name() string { return r.name }

// The closed set of guarded resources. Adding a table means adding a
// value here, not threading strings through handlers.
var (
	Contacts = Resource{
		name: "contact", table: "contacts",
		scopeColumn: "company_id", scope: ScopeCompany,
		creatorColumn: "created_by",
	}
	Campaigns = Resource{
		name: "campaign", table: "campaigns",
		scopeColumn: "workspace_id", scope: ScopeWorkspace,
		creatorColumn: "created_by",
	}
	Templates = Resource{
		name: "template", table: "templates",
		scopeColumn: "workspace_id", scope: ScopeWorkspace,
		creatorColumn: "created_by",
	}
	Tickets = Resource{
		name: "ticket", table: "tickets",
		scopeColumn: "company_id", scope: ScopeCompany,
		creatorColumn: "created_by",
	}
	Invoices = Resource{
		name: "invoice", table: "invoices",
		scopeColumn: "company_id", scope: ScopeCompany,
	}
	Companies = Resource{
		name: "company", table: "companies",
		scopeColumn: "workspace_id", scope: ScopeWorkspace,
		creatorColumn: "owner_user_id",
	}
)

// Prober runs the scoped existence query. Exactly one round trip per
// check: found and creator come back together.
type Prober interface {
	// Probe reports whether a row with the given id exists under the
	// scope value in the named table. creatorID is zero when
	// creatorColumn is empty or the row has no creator.
	Probe(ctx context.Context, table, scopeColumn, creatorColumn string, scopeValue, resourceID int64) (found bool, creatorID int64, err error)
}

// Guard verifies row ownership against a resolved tenant context.
type Guard struct {
	prober Prober
}

func New(prober Prober) *Guard {
	return &Guard{prober: prober}
}

// Verify reports whether the row exists inside the caller's tenant.
// A row in another workspace and a row that was never created are the
// same answer: false.
func (g *Guard) Verify(ctx context.Context, tc *tenant.Context, res Resource, id int64) (bool, error) {
	found, _, err := g.probe(ctx, tc, res, id)
	return found, err
}

// RequireOwnership is Verify with the failure already shaped for a
// handler: a miss is ErrNotFound, never ErrForbidden, so responses do
// not confirm that a row exists somewhere else.
func (g *Guard) RequireOwnership(ctx context.Context, tc *tenant.Context, res Resource, id int64) error {
	found, err := g.Verify(ctx, tc, res, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s not found", apperr.ErrNotFound, res.name)
	}
	return nil
}

// VerifyMany filters a batch of ids down to the subset that verifies
// inside the caller's tenant, preserving input order. An id from another
// tenant is simply absent from the result.
func (g *Guard) VerifyMany(ctx context.Context, tc *tenant.Context, res Resource, ids []int64) ([]int64, error) {
	owned := make([]int64, 0, len(ids))
	for _, id := range ids {
		found, err := g.Verify(ctx, tc, res, id)
		if err != nil {
			return nil, err
		}
		if found {
			owned = append(owned, id)
		}
	}
	return owned, nil
}

// IsOwnerOrAdmin reports whether the caller may take privileged action
// on the row: admins and owners always, everyone else only when they
// created it. Resources without a creator column never match for
// non-admins.
func (g *Guard) IsOwnerOrAdmin(ctx context.Context, tc *tenant.Context, res Resource, id int64) (bool, error) {
	if tc.Role.AtLeast(rbac.RoleAdmin) {
		return true, nil
	}
	if res.creatorColumn == "" {
		return false, nil
	}
	found, creatorID, err := g.probe(ctx, tc, res, id)
	if err != nil {
		return false, err
	}
	return found && creatorID == tc.UserID, nil
}

func (g *Guard) probe(ctx context.Context, tc *tenant.Context, res Resource, id int64) (bool, int64, error) {
	scopeValue := tc.WorkspaceID
	if res.scope == ScopeCompany {
		if tc.ActiveCompanyID == 0 {
			return false, 0, nil
		}
		scopeValue = tc.ActiveCompanyID
	}
	found, creatorID, err := g.prober.Probe(ctx, res.table, res.scopeColumn, res.creatorColumn, scopeValue, id)
	if err != nil {
		return false, 0, fmt.Errorf("verify %s ownership: %w", res.name, err)
	}
	return found, creatorID, nil
}
