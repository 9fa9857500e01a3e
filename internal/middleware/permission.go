package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ronittamrakar/xordon/internal/apperr"
	"github.com/ronittamrakar/xordon/internal/rbac"
)

// RequirePermission gates a route on a permission key evaluated against
// the caller's workspace role. Must run after ResolveTenant.
func RequirePermission(engine *rbac.Engine, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := GetTenant(c)
		if tc == nil {
			abortWithError(c, apperr.ErrUnauthorized)
			return
		}
		if err := engine.Require(tc.Role, key); err != nil {
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RequireRole gates a route on a minimum role, for routes that are
// about workspace administration rather than a named permission.
func RequireRole(engine *rbac.Engine, min rbac.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := GetTenant(c)
		if tc == nil {
			abortWithError(c, apperr.ErrUnauthorized)
			return
		}
		if err := engine.RequireRole(tc.Role, min); err != nil {
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}
