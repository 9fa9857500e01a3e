// Package tasks implements the durable work queue: enqueue on the
// request path, claim and execute on worker loops. Durability and claim
// atomicity live in the store; this package owns dispatch, retries, and
// the stale-claim sweep.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ronittamrakar/xordon/internal/models"
	"github.com/ronittamrakar/xordon/internal/repository"
)

// DefaultMaxAttempts applies when the enqueuer does not choose a retry
// budget.
const DefaultMaxAttempts = 3

// Queue is the producer side. Handlers and workers never see it.
type Queue struct {
	store repository.TaskStore
}

func NewQueue(store repository.TaskStore) *Queue {
	return &Queue{store: store}
}

// Enqueue persists a task for later execution. Higher priority runs
// first; within a priority level, oldest first. The payload must be
// valid JSON because workers hand it to handlers as-is.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload json.RawMessage, priority int) (*models.Task, error) {
	return q.EnqueueWithRetries(ctx, taskType, payload, priority, DefaultMaxAttempts)
}

// EnqueueWithRetries is Enqueue with an explicit attempt budget.
func (q *Queue) EnqueueWithRetries(ctx context.Context, taskType string, payload json.RawMessage, priority, maxAttempts int) (*models.Task, error) {
	if taskType == "" {
		return nil, fmt.Errorf("enqueue: task type is required")
	}
	if len(payload) > 0 && !json.Valid(payload) {
		return nil, fmt.Errorf("enqueue %s: payload is not valid JSON", taskType)
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	task, err := q.store.Enqueue(ctx, taskType, payload, priority, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return task, nil
}
