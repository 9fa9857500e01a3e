package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ronittamrakar/xordon/internal/models"
)

type CompanyStore struct {
	pool *pgxpool.Pool
}

func NewCompanyStore(pool *pgxpool.Pool) *CompanyStore {
	return &CompanyStore{pool: pool}
}

func (s *CompanyStore) ListByWorkspace(ctx context.Context, workspaceID int64) ([]models.Company, error) {
	query := `
		SELECT id, workspace_id, owner_user_id, name, status, created_at
		FROM companies
		WHERE workspace_id = $1
		ORDER BY name ASC`

	rows, err := s.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	return collectCompanies(rows)
}

func (s *CompanyStore) GrantedIDs(ctx context.Context, workspaceID, userID int64) ([]int64, error) {
	query := `
		SELECT g.company_id
		FROM company_access_grants g
		JOIN companies c ON c.id = g.company_id
		WHERE c.workspace_id = $1 AND g.user_id = $2
		ORDER BY g.company_id ASC`

	return s.collectIDs(ctx, query, "list granted companies", workspaceID, userID)
}

func (s *CompanyStore) LegacyOwnedIDs(ctx context.Context, workspaceID, userID int64) ([]int64, error) {
	query := `
		SELECT id
		FROM companies
		WHERE workspace_id = $1 AND owner_user_id = $2
		ORDER BY id ASC`

	return s.collectIDs(ctx, query, "list owned companies", workspaceID, userID)
}

func (s *CompanyStore) GetByID(ctx context.Context, workspaceID, companyID int64) (*models.Company, error) {
	query := `
		SELECT id, workspace_id, owner_user_id, name, status, created_at
		FROM companies
		WHERE id = $1 AND workspace_id = $2`

	var c models.Company
	err := s.pool.QueryRow(ctx, query, companyID, workspaceID).Scan(
		&c.ID,
		&c.WorkspaceID,
		&c.OwnerUserID,
		&c.Name,
		&c.Status,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

func (s *CompanyStore) collectIDs(ctx context.Context, query, op string, args ...any) ([]int64, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return ids, nil
}

func collectCompanies(rows pgx.Rows) ([]models.Company, error) {
	companies := make([]models.Company, 0)
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(
			&c.ID,
			&c.WorkspaceID,
			&c.OwnerUserID,
			&c.Name,
			&c.Status,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate companies: %w", err)
	}
	return companies, nil
}
