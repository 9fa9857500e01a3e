package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ronittamrakar/xordon/internal/observ"
	"github.com/ronittamrakar/xordon/internal/ratelimit"
)

// RateLimit applies the scope's budget to each request. Authenticated
// requests are limited per user; anonymous ones per client address, so
// a login flood from one host cannot consume another user's budget.
//
// The standard X-RateLimit headers are set on every response, allowed
// or not, so well-behaved clients can pace themselves before hitting
// the wall.
func RateLimit(limiter *ratelimit.Limiter, scope string, audit *observ.AuditSink) gin.HandlerFunc {
	return rateLimit(limiter, scope, audit, func(c *gin.Context) string {
		return ratelimit.Identifier(GetUserID(c), ClientIP(c))
	})
}

// RateLimitByIP applies the scope's budget keyed by client address
// regardless of identity. It runs before Authenticate, so requests
// carrying missing or invalid credentials are still bounded instead of
// escaping the limiter through an early 401.
func RateLimitByIP(limiter *ratelimit.Limiter, scope string, audit *observ.AuditSink) gin.HandlerFunc {
	return rateLimit(limiter, scope, audit, func(c *gin.Context) string {
		return ratelimit.Identifier(0, ClientIP(c))
	})
}

func rateLimit(limiter *ratelimit.Limiter, scope string, audit *observ.AuditSink, identify func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := identify(c)

		result := limiter.Check(c.Request.Context(), identifier, scope)

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			audit.RateLimited(c.Request.Context(), identifier, scope, result.Limit)
			c.Header("Retry-After", strconv.Itoa(result.RetryAfter(time.Now())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// ClientIP resolves the caller's address, preferring the first entry of
// X-Forwarded-For when a proxy chain added one.
func ClientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	return c.ClientIP()
}
