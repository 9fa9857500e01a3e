package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ronittamrakar/xordon/internal/models"
	"github.com/ronittamrakar/xordon/internal/repository"
)

// Handler executes one task. A nil return completes the task; an error
// sends it back through the retry policy.
type Handler func(ctx context.Context, task models.Task) error

// WorkerOptions tune the poll loop. Zero values fall back to defaults
// suitable for development.
type WorkerOptions struct {
	PollInterval time.Duration
	BatchSize    int
	StaleAfter   time.Duration
}

func (o WorkerOptions) withDefaults() WorkerOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 25
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 10 * time.Minute
	}
	return o
}

// Worker polls the queue and dispatches claimed tasks to registered
// handlers. Multiple workers may run against the same table; the
// store's claim statement guarantees each task lands on exactly one of
// them.
type Worker struct {
	store    repository.TaskStore
	log      *zap.Logger
	opts     WorkerOptions
	handlers map[string]Handler
}

func NewWorker(store repository.TaskStore, log *zap.Logger, opts WorkerOptions) *Worker {
	return &Worker{
		store:    store,
		log:      log.Named("worker"),
		opts:     opts.withDefaults(),
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a task type. Call before Run; the
// handler map is not guarded for concurrent mutation.
func (w *Worker) Register(taskType string, h Handler) {
	w.handlers[taskType] = h
}

// Run blocks until ctx is cancelled. Each cycle releases stale claims,
// claims a batch, and executes it sequentially.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started",
		zap.Duration("poll_interval", w.opts.PollInterval),
		zap.Int("batch_size", w.opts.BatchSize),
	)

	w.sweepStale(ctx)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped")
			return
		case <-ticker.C:
			w.sweepStale(ctx)
			w.runBatch(ctx)
		}
	}
}

// sweepStale returns claims held past StaleAfter to pending. A worker
// that died mid-task left its rows in processing; this is how those
// tasks become runnable again.
func (w *Worker) sweepStale(ctx context.Context) {
	released, err := w.store.ReleaseStale(ctx, w.opts.StaleAfter)
	if err != nil {
		w.log.Error("failed to release stale claims", zap.Error(err))
		return
	}
	if released > 0 {
		w.log.Warn("released stale task claims", zap.Int64("count", released))
	}
}

func (w *Worker) runBatch(ctx context.Context) {
	batch, err := w.store.ClaimBatch(ctx, w.opts.BatchSize)
	if err != nil {
		w.log.Error("failed to claim tasks", zap.Error(err))
		return
	}

	for _, task := range batch {
		if ctx.Err() != nil {
			return
		}
		w.execute(ctx, task)
	}
}

func (w *Worker) execute(ctx context.Context, task models.Task) {
	handler, ok := w.handlers[task.Type]
	if !ok {
		// Recorded through Fail so the attempt counter still moves; a
		// retry may land on a worker that does know the type.
		w.log.Error("no handler registered for task type",
			zap.String("type", task.Type),
			zap.Int64("task_id", task.ID),
		)
		if err := w.store.Fail(ctx, task.ID, "no handler registered for type "+task.Type); err != nil {
			w.log.Error("failed to record task failure", zap.Int64("task_id", task.ID), zap.Error(err))
		}
		return
	}

	start := time.Now()
	err := w.safeRun(ctx, handler, task)
	if err != nil {
		w.log.Warn("task attempt failed",
			zap.Int64("task_id", task.ID),
			zap.String("type", task.Type),
			zap.Int("attempt", task.Attempts),
			zap.Int("max_attempts", task.MaxAttempts),
			zap.Error(err),
		)
		if ferr := w.store.Fail(ctx, task.ID, err.Error()); ferr != nil {
			w.log.Error("failed to record task failure", zap.Int64("task_id", task.ID), zap.Error(ferr))
		}
		return
	}

	if err := w.store.Complete(ctx, task.ID); err != nil {
		w.log.Error("failed to mark task completed", zap.Int64("task_id", task.ID), zap.Error(err))
		return
	}
	w.log.Info("task completed",
		zap.Int64("task_id", task.ID),
		zap.String("type", task.Type),
		zap.Duration("duration", time.Since(start)),
	)
}

// safeRun converts a handler panic into a failed attempt instead of
// taking the whole worker down.
func (w *Worker) safeRun(ctx context.Context, handler Handler, task models.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, task)
}
