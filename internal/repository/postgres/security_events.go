package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ronittamrakar/xordon/internal/models"
)

// SecurityEventStore appends to the audit trail. There is intentionally no
// update or delete path here.
type SecurityEventStore struct {
	pool *pgxpool.Pool
}

func NewSecurityEventStore(pool *pgxpool.Pool) *SecurityEventStore {
	return &SecurityEventStore{pool: pool}
}

func (s *SecurityEventStore) Insert(ctx context.Context, event models.SecurityEvent) error {
	query := `
		INSERT INTO security_events (id, kind, user_id, workspace_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		event.ID, event.Kind, event.UserID, event.WorkspaceID, event.Details, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}
