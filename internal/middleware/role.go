package middleware

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/response"
)

// RequireRole lets through callers whose role is one of roles. It must run after JWT.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	denied := "requires role " + strings.Join(names, " or ")
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextUserRole); !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !slices.Contains(roles, ActorFrom(c).Role) {
			response.Forbidden(c, denied)
			c.Abort()
			return
		}
		c.Next()
	}
}
