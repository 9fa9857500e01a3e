package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ronittamrakar/xordon/internal/models"
)

type WorkspaceStore struct {
	pool *pgxpool.Pool
}

func NewWorkspaceStore(pool *pgxpool.Pool) *WorkspaceStore {
	return &WorkspaceStore{pool: pool}
}

const membershipColumns = `w.id, w.name, w.slug, m.role`

func (s *WorkspaceStore) MembershipBySlug(ctx context.Context, userID int64, slug string) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1 AND w.slug = $2
		LIMIT 1`

	return scanMembership(s.pool.QueryRow(ctx, query, userID, slug), "membership by slug")
}

func (s *WorkspaceStore) MembershipByWorkspace(ctx context.Context, userID, workspaceID int64) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1 AND w.id = $2
		LIMIT 1`

	return scanMembership(s.pool.QueryRow(ctx, query, userID, workspaceID), "membership by workspace")
}

// DefaultMembership prefers the membership where the user is owner, then
// the oldest membership by ascending membership id. This ordering is part
// of the tenant-resolution contract, not an implementation detail.
func (s *WorkspaceStore) DefaultMembership(ctx context.Context, userID int64) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM workspace_members m
		JOIN workspaces w ON w.id = m.workspace_id
		WHERE m.user_id = $1
		ORDER BY (m.role = 'owner') DESC, m.id ASC
		LIMIT 1`

	return scanMembership(s.pool.QueryRow(ctx, query, userID), "default membership")
}

func (s *WorkspaceStore) ListMemberships(ctx context.Context, userID int64) ([]models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM workspace_members m
		JOIN workspaces w ON w.id = m.workspace_id
		WHERE m.user_id = $1
		ORDER BY m.id ASC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	memberships := make([]models.Membership, 0)
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.WorkspaceID, &m.WorkspaceName, &m.Slug, &m.Role); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return memberships, nil
}

func (s *WorkspaceStore) ListMembers(ctx context.Context, workspaceID int64) ([]models.RosterEntry, error) {
	query := `
		SELECT m.user_id, u.email, u.name, m.role, m.created_at
		FROM workspace_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.workspace_id = $1
		ORDER BY m.id ASC`

	rows, err := s.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	roster := make([]models.RosterEntry, 0)
	for rows.Next() {
		var entry models.RosterEntry
		if err := rows.Scan(&entry.UserID, &entry.Email, &entry.Name, &entry.Role, &entry.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		roster = append(roster, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return roster, nil
}

func (s *WorkspaceStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM workspaces WHERE slug = $1)`, slug,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// CreateWithOwner inserts the workspace and the owner membership in one
// transaction. Owner role is assigned here and nowhere else.
func (s *WorkspaceStore) CreateWithOwner(ctx context.Context, name, slug string, ownerUserID int64) (*models.Workspace, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var w models.Workspace
	err = tx.QueryRow(ctx, `
		INSERT INTO workspaces (name, slug, owner_user_id, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, name, slug, owner_user_id, created_at`,
		name, slug, ownerUserID,
	).Scan(&w.ID, &w.Name, &w.Slug, &w.OwnerUserID, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert workspace: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, created_at)
		VALUES ($1, $2, 'owner', now())`,
		w.ID, ownerUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit workspace: %w", err)
	}
	return &w, nil
}

func scanMembership(row pgx.Row, op string) (*models.Membership, error) {
	var m models.Membership
	err := row.Scan(&m.WorkspaceID, &m.WorkspaceName, &m.Slug, &m.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &m, nil
}
