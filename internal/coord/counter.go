package coord

import (
	"context"
	"errors"
	"time"

	"github.com/ronittamrakar/xordon/internal/apperr"
)

// counterLockTTL bounds how long an increment's critical section may run.
// Generous for two storage round trips; short enough that a crashed
// caller frees the counter quickly.
const counterLockTTL = 10 * time.Second

// Contention retry budget. The critical section is two storage round
// trips, so under normal load a waiter lands well inside these bounds.
const (
	counterMaxAttempts    = 8
	counterRetryBaseDelay = 5 * time.Millisecond
)

// Counter provides atomic increment-and-return over a store with no
// native equivalent. The upsert alone is atomic, but the read needed to
// report the new value is not tied to it, so both run inside a lock
// named off the counter key, which makes the read consistent with the
// write that just happened.
type Counter struct {
	store  CounterStore
	locker *Locker
}

func NewCounter(store CounterStore, locker *Locker) *Counter {
	return &Counter{store: store, locker: locker}
}

// Increment applies delta to key and returns the resulting value. Safe
// under concurrent callers: M concurrent Increment(key, 1) calls yield a
// final value of initial + M with no lost updates. Contention on the
// underlying lock is retried with backoff; callers only see
// ErrLockContention when the counter stays contended past the whole
// retry budget.
func (c *Counter) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	var value int64
	delay := counterRetryBaseDelay
	for attempt := 1; ; attempt++ {
		err := c.locker.WithLock(ctx, "counter:"+key, counterLockTTL, func(ctx context.Context) error {
			if err := c.store.Add(ctx, key, delta); err != nil {
				return err
			}
			v, err := c.store.Get(ctx, key)
			if err != nil {
				return err
			}
			value = v
			return nil
		})
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, apperr.ErrLockContention) || attempt == counterMaxAttempts {
			return 0, err
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// Value reads the counter without modifying it.
func (c *Counter) Value(ctx context.Context, key string) (int64, error) {
	return c.store.Get(ctx, key)
}
