package handlers

import (
	"errors"
	"net/http"

	"github.com/farellandr/eventive/internal/helpers"
	"github.com/farellandr/eventive/internal/middleware"
	"github.com/farellandr/eventive/internal/services"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ScanTicket(c *gin.Context) {
	eventID, ok := h.uuidParam(c, "eventId", "event")
	if !ok {
		return
	}

	var req services.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	result, err := h.CheckIns.Scan(c.Request.Context(), middleware.CurrentActor(c), eventID, req)
	if errors.Is(err, services.ErrAlreadyCheckedIn) && result != nil {
		helpers.RespondWithCode(c, http.StatusConflict, services.ErrAlreadyCheckedIn.Code, services.ErrAlreadyCheckedIn.Message,
			gin.H{"check_in": result.CheckIn, "ticket": result.Ticket})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Check-in successful.",
		"check_in": result.CheckIn,
		"ticket":   result.Ticket,
	})
}

func (h *Handler) ListCheckIns(c *gin.Context) {
	eventID, ok := h.uuidParam(c, "eventId", "event")
	if !ok {
		return
	}

	checkIns, err := h.CheckIns.List(c.Request.Context(), middleware.CurrentActor(c), eventID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"check_ins": checkIns})
}

func (h *Handler) CheckInStats(c *gin.Context) {
	eventID, ok := h.uuidParam(c, "eventId", "event")
	if !ok {
		return
	}

	stats, err := h.CheckIns.Stats(c.Request.Context(), middleware.CurrentActor(c), eventID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
