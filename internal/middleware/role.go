package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/libroom/reservations/pkg/response"
)

// RequireRole lets through only callers whose token carries one of roles.
// It must run after JWT.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get(ContextUserRole)
		if !ok {
			response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing user context")
			c.Abort()
			return
		}
		if r, _ := role.(string); !slices.Contains(roles, r) {
			response.Fail(c, http.StatusForbidden, response.CodeForbidden, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
