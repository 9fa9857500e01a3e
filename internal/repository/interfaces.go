package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ronittamrakar/xordon/internal/models"
)

// Every method takes a context.Context: all of these do I/O, and the
// request's deadline/cancellation must reach the database.
//
// Workspace scoping appears in every query that touches tenant data. The
// store never trusts the caller to have filtered; it always scopes by
// workspace itself. Guessing another workspace's row id gets you nothing.

// TokenStore persists opaque bearer credentials.
type TokenStore interface {
	// Insert stores a freshly issued token row.
	Insert(ctx context.Context, token models.AuthToken) error

	// Get returns the row for token, or nil, nil when absent. Expiry is
	// NOT checked here: the authenticator owns that rule so that the
	// check and the lazy delete stay in one code path.
	Get(ctx context.Context, token string) (*models.AuthToken, error)

	// Delete removes one token. Reports whether a row was deleted.
	Delete(ctx context.Context, token string) (bool, error)

	// DeleteByUser removes every token for a user and returns the count.
	DeleteByUser(ctx context.Context, userID int64) (int64, error)

	// DeleteExpired sweeps rows whose expires_at has passed.
	DeleteExpired(ctx context.Context) (int64, error)
}

// UserStore handles user rows. Users are created by signup; everything
// else reads.
type UserStore interface {
	GetByID(ctx context.Context, userID int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, email, name, passwordHash string) (*models.User, error)
}

// WorkspaceStore handles workspaces and workspace memberships together,
// since tenant resolution always needs them joined.
type WorkspaceStore interface {
	// MembershipBySlug returns the user's membership in the workspace with
	// the given slug, or nil, nil when the user is not a member of it.
	MembershipBySlug(ctx context.Context, userID int64, slug string) (*models.Membership, error)

	// MembershipByWorkspace is MembershipBySlug keyed by workspace id.
	MembershipByWorkspace(ctx context.Context, userID, workspaceID int64) (*models.Membership, error)

	// DefaultMembership returns the membership the resolver falls back to:
	// the one with role owner if present, else the earliest membership by
	// ascending membership id. nil, nil when the user has none.
	DefaultMembership(ctx context.Context, userID int64) (*models.Membership, error)

	// ListMemberships returns all of the user's memberships.
	ListMemberships(ctx context.Context, userID int64) ([]models.Membership, error)

	// ListMembers returns the workspace's member roster, oldest first.
	ListMembers(ctx context.Context, workspaceID int64) ([]models.RosterEntry, error)

	// SlugExists reports whether any workspace already uses slug.
	SlugExists(ctx context.Context, slug string) (bool, error)

	// CreateWithOwner inserts a workspace and its owner membership in one
	// transaction.
	CreateWithOwner(ctx context.Context, name, slug string, ownerUserID int64) (*models.Workspace, error)
}

// CompanyStore handles the sub-tenant axis.
type CompanyStore interface {
	// ListByWorkspace returns all companies in a workspace, name order.
	ListByWorkspace(ctx context.Context, workspaceID int64) ([]models.Company, error)

	// GrantedIDs returns company ids explicitly granted to the user via
	// the access-grant table, ascending.
	GrantedIDs(ctx context.Context, workspaceID, userID int64) ([]int64, error)

	// LegacyOwnedIDs returns company ids the user owns directly, the
	// fallback when no grants exist.
	LegacyOwnedIDs(ctx context.Context, workspaceID, userID int64) ([]int64, error)

	// GetByID returns a company scoped to the workspace, or nil, nil.
	GetByID(ctx context.Context, workspaceID, companyID int64) (*models.Company, error)
}

// TaskStore is the durable queue's storage contract.
type TaskStore interface {
	// Enqueue inserts a pending task and returns it with id populated.
	Enqueue(ctx context.Context, taskType string, payload json.RawMessage, priority, maxAttempts int) (*models.Task, error)

	// ClaimBatch atomically flips up to limit pending tasks to processing
	// and returns them, ordered priority desc then created_at asc. The
	// select and the status flip are one statement, so two workers can
	// never claim the same row.
	ClaimBatch(ctx context.Context, limit int) ([]models.Task, error)

	// Complete terminally marks a claimed task done.
	Complete(ctx context.Context, taskID int64) error

	// Fail records an error for a claimed task: back to pending while
	// attempts remain, terminal failed otherwise.
	Fail(ctx context.Context, taskID int64, taskErr string) error

	// ReleaseStale returns tasks stuck in processing longer than olderThan
	// to pending, so a crashed worker's claims become runnable again.
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error)
}
