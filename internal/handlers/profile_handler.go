package handlers

import (
	"net/http"

	"github.com/farellandr/eventive/internal/middleware"
	"github.com/gin-gonic/gin"
)

func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.Users.Profile(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
