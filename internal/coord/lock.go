package coord

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ronittamrakar/xordon/internal/apperr"
	"github.com/ronittamrakar/xordon/internal/observ"
)

// Locker hands out best-effort, expiring mutual-exclusion locks.
//
// Guarantees and non-guarantees:
//   - At most one live (non-expired) holder per key.
//   - No fairness: waiters retry with backoff, they are not queued.
//   - Expiry is the liveness mechanism. A holder that outlives its TTL
//     must treat "I still hold the lock" as unverified; a second caller
//     may legitimately hold it by then. Keep critical sections short
//     relative to the TTL.
//
// Lock failures land in the security audit trail as well as the log:
// sustained contention and expired-before-release leases are the early
// signals of a wedged or abusive workload.
type Locker struct {
	store LockStore
	audit *observ.AuditSink
	log   *zap.Logger
	now   func() time.Time
}

func NewLocker(store LockStore, audit *observ.AuditSink, log *zap.Logger) *Locker {
	return &Locker{store: store, audit: audit, log: log, now: time.Now}
}

// Lease is proof of a successful acquisition. Only the lease that was
// handed out can release the lock it names.
type Lease struct {
	Key    string
	Holder string

	locker *Locker
}

// Acquire attempts to take the lock for key with the given TTL. It writes
// an upsert that only wins when the row is absent or expired, then
// re-reads the row and compares the holder id it just generated. Only a
// matching read counts: between our write and the read a third party's
// insert may have won the race, and trusting the write alone would let
// two callers both believe they hold the lock.
//
// Returns ErrLockContention when the lock is live under another holder.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	holder := uuid.NewString()
	expiresAt := l.now().Add(ttl)

	if err := l.store.UpsertIfExpired(ctx, key, holder, expiresAt); err != nil {
		return nil, fmt.Errorf("lock upsert %q: %w", key, err)
	}

	current, _, ok, err := l.store.Holder(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock read-back %q: %w", key, err)
	}
	if !ok || current != holder {
		err := fmt.Errorf("%w: %q", apperr.ErrLockContention, key)
		l.audit.LockFailure(ctx, key, "acquire", err)
		return nil, err
	}

	return &Lease{Key: key, Holder: holder, locker: l}, nil
}

// Release frees the lock if this lease still holds it. A false return is
// not fatal: it means the lease expired and the row was superseded or
// swept, which is exactly what expiry is for. It is still logged and
// audited, because it also means the critical section ran longer than
// its TTL.
func (le *Lease) Release(ctx context.Context) (bool, error) {
	deleted, err := le.locker.store.DeleteIfHolder(ctx, le.Key, le.Holder)
	if err != nil {
		err = fmt.Errorf("lock release %q: %w", le.Key, err)
		le.locker.audit.LockFailure(ctx, le.Key, "release", err)
		return false, err
	}
	if !deleted {
		le.locker.log.Warn("lock lease expired before release",
			zap.String("key", le.Key),
		)
		le.locker.audit.LockFailure(ctx, le.Key, "release", nil)
	}
	return deleted, nil
}

// WithLock runs fn while holding the lock for key, releasing on every
// exit path including panics.
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lease, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() {
		if _, releaseErr := lease.Release(ctx); releaseErr != nil {
			l.log.Error("lock release failed",
				zap.String("key", key),
				zap.Error(releaseErr),
			)
		}
	}()

	return fn(ctx)
}
