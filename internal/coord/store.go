// Package coord provides the cross-process coordination primitives:
// store-backed mutual-exclusion locks and atomic counters.
//
// The backing store exposes no native "acquire" or "increment and return"
// operation, so both primitives are built over two narrow contracts that
// any store with an atomic upsert can satisfy. The pgx implementations
// live in repository/postgres; tests run against in-memory ones.
package coord

import (
	"context"
	"time"
)

// LockStore is the compare-and-swap surface a lock needs.
type LockStore interface {
	// UpsertIfExpired atomically writes (key, holder, expiresAt) when no
	// row exists for key or the existing row has expired. It deliberately
	// does not report whether the write won: under concurrency the only
	// trustworthy answer is a re-read, which the locker performs.
	UpsertIfExpired(ctx context.Context, key, holder string, expiresAt time.Time) error

	// Holder returns the current holder and expiry for key.
	// ok is false when no row exists.
	Holder(ctx context.Context, key string) (holder string, expiresAt time.Time, ok bool, err error)

	// DeleteIfHolder removes the row only if it is still held by holder,
	// and reports whether a row was removed. This keeps a caller whose
	// lease expired from releasing a lock someone else now holds.
	DeleteIfHolder(ctx context.Context, key, holder string) (bool, error)
}

// CounterStore is the surface an atomic counter needs.
type CounterStore interface {
	// Add applies delta with an atomic upsert (insert-or-add).
	Add(ctx context.Context, key string, delta int64) error

	// Get reads the current value; a missing key reads as zero.
	Get(ctx context.Context, key string) (int64, error)
}
