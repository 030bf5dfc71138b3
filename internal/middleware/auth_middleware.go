package middleware

import (
	"net/http"
	"strings"

	"github.com/farellandr/eventive/internal/helpers"
	"github.com/farellandr/eventive/internal/models"
	"github.com/farellandr/eventive/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

type TokenParser interface {
	ParseToken(token string) (services.Actor, error)
}

// JWTAuthMiddleware rejects requests without a valid bearer token and stores
// the caller's id and role on the gin context.
func JWTAuthMiddleware(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			helpers.RespondWithCode(c, http.StatusUnauthorized, "unauthorized", "Authorization header is missing or malformed.", nil)
			return
		}

		actor, err := parser.ParseToken(token)
		if err != nil {
			helpers.RespondWithCode(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired token.", nil)
			return
		}

		setActor(c, actor)
		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if actor, err := parser.ParseToken(token); err == nil {
				setActor(c, actor)
			}
		}
		c.Next()
	}
}

func RequireRole(roles ...models.RoleName) gin.HandlerFunc {
	allowed := make(map[models.RoleName]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(c *gin.Context) {
		if !allowed[CurrentActor(c).Role] {
			helpers.RespondWithCode(c, http.StatusForbidden, "forbidden", "You don't have permission to perform this action.", nil)
			return
		}
		c.Next()
	}
}

// CurrentActor returns the caller set by the auth middleware, or the zero
// Actor for anonymous requests.
func CurrentActor(c *gin.Context) services.Actor {
	var actor services.Actor
	if id, ok := c.Get(ContextUserID); ok {
		actor.UserID, _ = id.(uuid.UUID)
	}
	if role, ok := c.Get(ContextRole); ok {
		actor.Role, _ = role.(models.RoleName)
	}
	return actor
}

func setActor(c *gin.Context, actor services.Actor) {
	c.Set(ContextUserID, actor.UserID)
	c.Set(ContextRole, actor.Role)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
