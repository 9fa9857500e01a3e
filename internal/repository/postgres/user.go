package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ronittamrakar/xordon/internal/models"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	query := `
		SELECT id, email, name, password_hash, status, account_type, created_at
		FROM users
		WHERE id = $1`

	return s.scanOne(s.pool.QueryRow(ctx, query, userID), "get user")
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, name, password_hash, status, account_type, created_at
		FROM users
		WHERE lower(email) = lower($1)`

	return s.scanOne(s.pool.QueryRow(ctx, query, email), "get user by email")
}

func (s *UserStore) Create(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (email, name, password_hash, status, account_type, created_at)
		VALUES ($1, $2, $3, 'active', 'standard', now())
		RETURNING id, email, name, password_hash, status, account_type, created_at`

	return s.scanOne(s.pool.QueryRow(ctx, query, email, name, passwordHash), "insert user")
}

func (s *UserStore) scanOne(row pgx.Row, op string) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.Status,
		&u.AccountType,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}
