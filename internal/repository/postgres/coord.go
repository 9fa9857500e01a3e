package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LockStore implements coord.LockStore on the locks table.
type LockStore struct {
	pool *pgxpool.Pool
}

func NewLockStore(pool *pgxpool.Pool) *LockStore {
	return &LockStore{pool: pool}
}

// UpsertIfExpired is a single atomic statement: the insert wins when no
// row exists, the conditional update wins only when the existing row has
// expired. A live lock under another holder leaves the row untouched.
func (s *LockStore) UpsertIfExpired(ctx context.Context, key, holder string, expiresAt time.Time) error {
	query := `
		INSERT INTO locks (resource_key, holder, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (resource_key) DO UPDATE
		SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
		WHERE locks.expires_at <= now()`

	if _, err := s.pool.Exec(ctx, query, key, holder, expiresAt); err != nil {
		return fmt.Errorf("upsert lock: %w", err)
	}
	return nil
}

func (s *LockStore) Holder(ctx context.Context, key string) (string, time.Time, bool, error) {
	var holder string
	var expiresAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT holder, expires_at FROM locks WHERE resource_key = $1`, key,
	).Scan(&holder, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, false, nil
		}
		return "", time.Time{}, false, fmt.Errorf("read lock: %w", err)
	}
	return holder, expiresAt, true, nil
}

func (s *LockStore) DeleteIfHolder(ctx context.Context, key, holder string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM locks WHERE resource_key = $1 AND holder = $2`, key, holder,
	)
	if err != nil {
		return false, fmt.Errorf("delete lock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CounterStore implements coord.CounterStore on the counters table.
type CounterStore struct {
	pool *pgxpool.Pool
}

func NewCounterStore(pool *pgxpool.Pool) *CounterStore {
	return &CounterStore{pool: pool}
}

func (s *CounterStore) Add(ctx context.Context, key string, delta int64) error {
	query := `
		INSERT INTO counters (counter_key, value)
		VALUES ($1, $2)
		ON CONFLICT (counter_key) DO UPDATE
		SET value = counters.value + EXCLUDED.value`

	if _, err := s.pool.Exec(ctx, query, key, delta); err != nil {
		return fmt.Errorf("add counter: %w", err)
	}
	return nil
}

func (s *CounterStore) Get(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM counters WHERE counter_key = $1`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get counter: %w", err)
	}
	return value, nil
}
