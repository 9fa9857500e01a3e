// Package middleware carries the gin request chain: rate limiting,
// authentication, tenant resolution, and permission gates. Handlers
// behind these middlewares can assume an identity and a consistent
// tenant context without re-checking either.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ronittamrakar/xordon/internal/apperr"
	"github.com/ronittamrakar/xordon/internal/auth"
	"github.com/ronittamrakar/xordon/internal/tenant"
)

// Context keys for values stashed in gin.Context. Constants so a typo
// fails to compile instead of silently reading nothing.
const (
	ContextKeyUserID = "user_id"
	ContextKeyTenant = "tenant_context"
	ContextKeyToken  = "auth_token"
)

// Authenticate resolves the bearer credential to a user id and aborts
// with 401 when it cannot. It does not touch tenancy; ResolveTenant
// runs after it on routes that need a workspace.
func Authenticate(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)

		userID, err := authenticator.Resolve(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyToken, token)
		c.Next()
	}
}

// ResolveTenant computes the tenant context for the authenticated user
// from the request's workspace and company hints. Must run after
// Authenticate.
func ResolveTenant(resolver *tenant.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == 0 {
			abortWithError(c, apperr.ErrUnauthorized)
			return
		}

		hints := tenant.Hints{
			Slug:           workspaceSlug(c),
			WorkspaceID:    c.GetHeader("X-Workspace-Id"),
			CompanyID:      c.GetHeader("X-Company-Id"),
			LegacyClientID: c.GetHeader("X-Client-Id"),
		}

		tc, err := resolver.ResolveOrFail(c.Request.Context(), userID, hints)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(ContextKeyTenant, tc)
		c.Next()
	}
}

// ExtractToken pulls the credential from the Authorization header
// (Bearer scheme) or the X-Auth-Token fallback. Empty when neither is
// present; the authenticator decides what an empty token means.
func ExtractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(c.GetHeader("X-Auth-Token"))
}

// workspaceSlug reads the explicit workspace selector: a :workspace
// path param when the route has one, else the workspace query param.
func workspaceSlug(c *gin.Context) string {
	if slug := c.Param("workspace"); slug != "" {
		return slug
	}
	return c.Query("workspace")
}

// GetUserID returns the authenticated user id, zero when Authenticate
// has not run or failed.
func GetUserID(c *gin.Context) int64 {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0
	}
	id, ok := val.(int64)
	if !ok {
		return 0
	}
	return id
}

// GetTenant returns the resolved tenant context, nil when ResolveTenant
// has not run.
func GetTenant(c *gin.Context) *tenant.Context {
	val, exists := c.Get(ContextKeyTenant)
	if !exists {
		return nil
	}
	tc, ok := val.(*tenant.Context)
	if !ok {
		return nil
	}
	return tc
}

// GetToken returns the raw credential for handlers that operate on the
// presented token itself, such as logout.
func GetToken(c *gin.Context) string {
	val, exists := c.Get(ContextKeyToken)
	if !exists {
		return ""
	}
	token, ok := val.(string)
	if !ok {
		return ""
	}
	return token
}

// abortWithError ends the request with the taxonomy-mapped status. The
// response body carries only the sentinel's message; wrapped internal
// detail stays in the logs.
func abortWithError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
