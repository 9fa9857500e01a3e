package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ronittamrakar/xordon/internal/models"
)

type TaskStore struct {
	pool *pgxpool.Pool
}

func NewTaskStore(pool *pgxpool.Pool) *TaskStore {
	return &TaskStore{pool: pool}
}

const taskColumns = `id, type, payload, priority, status, attempts, max_attempts, COALESCE(last_error, ''), created_at, started_at, finished_at`

func (s *TaskStore) Enqueue(ctx context.Context, taskType string, payload json.RawMessage, priority, maxAttempts int) (*models.Task, error) {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	query := `
		INSERT INTO tasks (type, payload, priority, status, attempts, max_attempts, created_at)
		VALUES ($1, $2, $3, 'pending', 0, $4, now())
		RETURNING ` + taskColumns

	var t models.Task
	err := s.pool.QueryRow(ctx, query, taskType, payload, priority, maxAttempts).Scan(
		&t.ID, &t.Type, &t.Payload, &t.Priority, &t.Status,
		&t.Attempts, &t.MaxAttempts, &t.LastError,
		&t.CreatedAt, &t.StartedAt, &t.FinishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}
	return &t, nil
}

// ClaimBatch selects claimable rows and flips them to processing in one
// statement. FOR UPDATE SKIP LOCKED makes competing workers skip rows a
// concurrent claim is already touching instead of blocking on them, so a
// row is claimed exactly once and a slow worker never stalls the others.
func (s *TaskStore) ClaimBatch(ctx context.Context, limit int) ([]models.Task, error) {
	query := `
		UPDATE tasks
		SET status = 'processing', started_at = now(), attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM tasks
			WHERE status = 'pending'
			ORDER BY priority DESC, created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + taskColumns

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0, limit)
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(
			&t.ID, &t.Type, &t.Payload, &t.Priority, &t.Status,
			&t.Attempts, &t.MaxAttempts, &t.LastError,
			&t.CreatedAt, &t.StartedAt, &t.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan claimed task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskStore) Complete(ctx context.Context, taskID int64) error {
	query := `
		UPDATE tasks
		SET status = 'completed', finished_at = now(), last_error = NULL
		WHERE id = $1 AND status = 'processing'`

	tag, err := s.pool.Exec(ctx, query, taskID)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete task %d: not in processing state", taskID)
	}
	return nil
}

// Fail records the error and either re-queues the task (attempts left) or
// marks it terminally failed. The status guard keeps a late worker from
// clobbering a row the stale sweep already released.
func (s *TaskStore) Fail(ctx context.Context, taskID int64, taskErr string) error {
	query := `
		UPDATE tasks
		SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
		    finished_at = CASE WHEN attempts >= max_attempts THEN now() ELSE NULL END,
		    last_error = $2
		WHERE id = $1 AND status = 'processing'`

	tag, err := s.pool.Exec(ctx, query, taskID, taskErr)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fail task %d: not in processing state", taskID)
	}
	return nil
}

func (s *TaskStore) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE tasks
		SET status = 'pending', started_at = NULL
		WHERE status = 'processing' AND started_at < now() - make_interval(secs => $1)`

	tag, err := s.pool.Exec(ctx, query, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("release stale tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}
