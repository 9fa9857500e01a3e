// Package ratelimit implements sliding-window request limits. Redis is
// the primary counter store so limits hold across instances; when Redis
// is unreachable the limiter degrades to a per-process window rather
// than failing requests or going unlimited.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Scopes with independent budgets. Login is tighter because it is the
// credential-guessing surface.
const (
	ScopeAPI   = "api"
	ScopeLogin = "login"
)

// Result is one admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int

	// ResetAt is when the oldest counted hit leaves the window, i.e.
	// the earliest moment a denied caller can expect capacity back.
	ResetAt time.Time
}

// Store counts hits in a sliding window.
type Store interface {
	// Hit decides admission for key: it prunes hits older than window,
	// records a new hit only when the key is under limit, and returns the
	// decision with the resulting hit count and the timestamp of the
	// oldest surviving hit. Denied checks leave no trace in the window.
	Hit(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, count int64, oldest time.Time, err error)
}

// Limiter applies per-scope budgets over a shared window length.
type Limiter struct {
	window   time.Duration
	limits   map[string]int
	primary  Store
	fallback Store
	log      *zap.Logger
	now      func() time.Time
}

// New builds a limiter. primary may be nil when no shared store is
// configured; fallback must not be.
func New(window time.Duration, limits map[string]int, primary, fallback Store, log *zap.Logger) *Limiter {
	return &Limiter{
		window:   window,
		limits:   limits,
		primary:  primary,
		fallback: fallback,
		log:      log.Named("ratelimit"),
		now:      time.Now,
	}
}

// Check decides admission for identifier under scope. Only admitted
// requests count against the window, so a denied caller regains capacity
// as soon as its admitted hits age out, no matter how hard it retries.
// An unknown scope is a configuration hole and is treated as the API
// budget rather than unlimited.
func (l *Limiter) Check(ctx context.Context, identifier, scope string) Result {
	limit, ok := l.limits[scope]
	if !ok {
		limit = l.limits[ScopeAPI]
	}

	key := scope + ":" + identifier
	allowed, count, oldest, err := l.hit(ctx, key, limit)
	if err != nil {
		// Both stores down. Admit rather than turning a counter outage
		// into an API outage.
		l.log.Error("rate limit stores unavailable, admitting request",
			zap.String("scope", scope),
			zap.Error(err),
		)
		return Result{Allowed: true, Limit: limit, Remaining: limit, ResetAt: l.now().Add(l.window)}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	resetAt := oldest.Add(l.window)
	if oldest.IsZero() {
		resetAt = l.now().Add(l.window)
	}

	return Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

func (l *Limiter) hit(ctx context.Context, key string, limit int) (bool, int64, time.Time, error) {
	if l.primary != nil {
		allowed, count, oldest, err := l.primary.Hit(ctx, key, limit, l.window)
		if err == nil {
			return allowed, count, oldest, nil
		}
		l.log.Warn("primary rate limit store failed, using in-process fallback", zap.Error(err))
	}
	return l.fallback.Hit(ctx, key, limit, l.window)
}

// Identifier derives the limit key for a request: the user id once
// authenticated, the client address before that.
func Identifier(userID int64, clientIP string) string {
	if userID > 0 {
		return "user:" + strconv.FormatInt(userID, 10)
	}
	return "ip:" + clientIP
}

// RetryAfter converts a deny result into whole seconds for the
// Retry-After header, never less than one.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
