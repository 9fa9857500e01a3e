package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ronittamrakar/xordon/internal/models"
)

type TokenStore struct {
	pool *pgxpool.Pool
}

func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

func (s *TokenStore) Insert(ctx context.Context, token models.AuthToken) error {
	query := `
		INSERT INTO auth_tokens (token, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, query, token.Token, token.UserID, token.CreatedAt, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (s *TokenStore) Get(ctx context.Context, token string) (*models.AuthToken, error) {
	query := `
		SELECT token, user_id, created_at, expires_at
		FROM auth_tokens
		WHERE token = $1`

	var t models.AuthToken
	err := s.pool.QueryRow(ctx, query, token).Scan(
		&t.Token,
		&t.UserID,
		&t.CreatedAt,
		&t.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

func (s *TokenStore) Delete(ctx context.Context, token string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE token = $1`, token)
	if err != nil {
		return false, fmt.Errorf("delete token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *TokenStore) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *TokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM auth_tokens
		WHERE expires_at IS NOT NULL AND expires_at <= now()`

	tag, err := s.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
