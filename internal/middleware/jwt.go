package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserGroup is the key for the caller's inviter group (*uuid.UUID) in gin context.
	ContextUserGroup = "user_group"
)

// Authenticator turns a bearer token into the caller it identifies.
type Authenticator interface {
	Authenticate(token string) (models.Actor, error)
}

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			response.Unauthorized(c, "missing or invalid authorization header")
			c.Abort()
			return
		}
		actor, err := authn.Authenticate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, actor.UserID)
		c.Set(ContextUserRole, actor.Role)
		c.Set(ContextUserGroup, actor.GroupID)
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// ActorFrom returns the authenticated caller set by JWT.
func ActorFrom(c *gin.Context) models.Actor {
	a := models.Actor{IP: c.ClientIP()}
	if v, ok := c.Get(ContextUserID); ok {
		a.UserID, _ = v.(uuid.UUID)
	}
	if v, ok := c.Get(ContextUserRole); ok {
		a.Role, _ = v.(models.Role)
	}
	if v, ok := c.Get(ContextUserGroup); ok {
		a.GroupID, _ = v.(*uuid.UUID)
	}
	return a
}
