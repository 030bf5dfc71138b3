package middleware

import (
	"log/slog"
	"net/http"

	"github.com/farellandr/eventive/internal/helpers"
	"github.com/farellandr/eventive/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimit throttles a route group per authenticated user, falling back to
// the client IP. A failing limiter store lets requests through.
func RateLimit(limiter ratelimit.Limiter, scope string, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := scope + ":ip:" + c.ClientIP()
		if actor := CurrentActor(c); actor.Authenticated() {
			key = scope + ":user:" + actor.UserID.String()
		}

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter unavailable", "scope", scope, "error", err)
			c.Next()
			return
		}
		if !allowed {
			helpers.RespondWithCode(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again later.", nil)
			return
		}
		c.Next()
	}
}
