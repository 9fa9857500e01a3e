package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ronittamrakar/xordon/internal/observ"
	"github.com/ronittamrakar/xordon/internal/ratelimit"
)

func testAPILimiter(limit int) *ratelimit.Limiter {
	return ratelimit.New(time.Minute, map[string]int{ratelimit.ScopeAPI: limit},
		nil, ratelimit.NewMemoryStore(), zap.NewNop())
}

// A flood of bad credentials must run out of budget instead of getting
// unlimited 401s, so the address-keyed limiter sits in front of the
// auth check.
func TestIPLimitBoundsFailedAuthentication(t *testing.T) {
	gin.SetMode(gin.TestMode)
	audit := observ.NewAuditSink(zap.NewNop(), nil)

	rejectAll := func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}

	router := gin.New()
	router.GET("/v1/me",
		RateLimitByIP(testAPILimiter(2), ratelimit.ScopeAPI, audit),
		rejectAll,
	)

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		router.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusUnauthorized, send().Code)
	require.Equal(t, http.StatusUnauthorized, send().Code)

	denied := send()
	require.Equal(t, http.StatusTooManyRequests, denied.Code)
	require.NotEmpty(t, denied.Header().Get("Retry-After"))
	require.Equal(t, "0", denied.Header().Get("X-RateLimit-Remaining"))
}

func TestIPLimitIgnoresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	audit := observ.NewAuditSink(zap.NewNop(), nil)

	router := gin.New()
	router.GET("/ping",
		func(c *gin.Context) { c.Set(ContextKeyUserID, int64(7)) },
		RateLimitByIP(testAPILimiter(1), ratelimit.ScopeAPI, audit),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) },
	)

	send := func(addr string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Forwarded-For", addr)
		router.ServeHTTP(w, req)
		return w.Code
	}

	// The key is the address even when a user id is present, so the
	// same address is capped and a different one is untouched.
	require.Equal(t, http.StatusOK, send("10.0.0.1"))
	require.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	require.Equal(t, http.StatusOK, send("10.0.0.2"))
}
