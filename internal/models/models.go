package models

import (
	"encoding/json"
	"time"
)

// User is a person on the platform. Users are created by the signup and
// invite flows; the governance layer treats them as read-only input.
//
// Why int64 ids and not UUIDs?
//   - Users, workspaces, and companies are created through a single API,
//     so a database sequence is enough and keeps foreign keys compact.
//   - Opaque random ids are reserved for credentials and lock holders,
//     where guessability matters.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Status       string    `json:"status"`
	AccountType  string    `json:"account_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// User statuses. Only active users may authenticate.
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

// AuthToken is an opaque bearer credential bound to one user.
//
// ExpiresAt is a pointer because legacy rows may carry NULL. A non-nil
// ExpiresAt in the past makes the token logically absent even before the
// sweeper deletes the row; the resolver enforces that on every read.
type AuthToken struct {
	Token     string     `json:"-"`
	UserID    int64      `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Workspace is the top-level tenant boundary. Slug is globally unique and
// URL-safe; it is how a workspace is addressed in paths and tenant hints.
type Workspace struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	OwnerUserID int64     `json:"owner_user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// WorkspaceMember maps a user into a workspace with exactly one role.
// The role string is one of the closed set understood by the rbac package.
type WorkspaceMember struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	UserID      int64     `json:"user_id"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// RosterEntry is one row of a workspace's member roster: the membership
// joined with the user's identity, which is what an administrator
// actually reviews.
type RosterEntry struct {
	UserID   int64     `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Membership is what the tenant resolver actually works with: a workspace
// joined with the caller's role in it.
type Membership struct {
	WorkspaceID   int64  `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	Slug          string `json:"slug"`
	Role          string `json:"role"`
}

// Company is the second tenancy axis: a client or brand managed inside a
// workspace. Which companies a user may act on depends on their workspace
// role: owners and admins see all of them, lower roles only the ones
// granted to them (or legacy-owned rows when no grants exist).
type Company struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	OwnerUserID int64     `json:"owner_user_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Task is a row in the durable work queue.
//
// Status transitions: pending -> processing (atomic claim),
// processing -> completed | failed (terminal), and processing -> pending
// when a stale claim is swept or a failed attempt still has retries left.
type Task struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Priority    int             `json:"priority"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// Task statuses. These are stored as-is, so changing a value is a
// migration, not a refactor.
const (
	TaskPending    = "pending"
	TaskProcessing = "processing"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
)

// SecurityEvent is one row in the append-only audit trail. Enough context
// is captured to investigate a cross-tenant access attempt after the fact:
// who, in which workspace, what they asked for, and what they were allowed.
type SecurityEvent struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	UserID      int64           `json:"user_id"`
	WorkspaceID int64           `json:"workspace_id"`
	Details     json.RawMessage `json:"details"`
	CreatedAt   time.Time       `json:"created_at"`
}
