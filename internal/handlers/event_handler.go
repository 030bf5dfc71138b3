package handlers

import (
	"net/http"

	"github.com/farellandr/eventive/internal/helpers"
	"github.com/farellandr/eventive/internal/middleware"
	"github.com/farellandr/eventive/internal/models"
	"github.com/farellandr/eventive/internal/services"
	"github.com/gin-gonic/gin"
)

type EventStatusRequest struct {
	Status models.EventStatus `json:"status" binding:"required"`
}

func (h *Handler) ListEvents(c *gin.Context) {
	var filter services.EventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.respondBindError(c, err)
		return
	}

	page, err := h.Events.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetEvent(c *gin.Context) {
	event, err := h.Events.Get(c.Request.Context(), middleware.CurrentActor(c), c.Param("ref"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var req services.EventInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	event, err := h.Events.Create(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Event created successfully.",
		"event":   event,
	})
}

func (h *Handler) UpdateEvent(c *gin.Context) {
	var req services.EventUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	event, err := h.Events.Update(c.Request.Context(), middleware.CurrentActor(c), c.Param("ref"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Event updated successfully.",
		"event":   event,
	})
}

func (h *Handler) UpdateEventStatus(c *gin.Context) {
	var req EventStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	event, err := h.Events.SetStatus(c.Request.Context(), middleware.CurrentActor(c), c.Param("ref"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Event status updated.",
		"event":   event,
	})
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	if err := h.Events.Delete(c.Request.Context(), middleware.CurrentActor(c), c.Param("ref")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully."})
}

func (h *Handler) UploadBanner(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	ref := c.Param("ref")

	if err := h.Events.AuthorizeManage(c.Request.Context(), actor, ref); err != nil {
		h.respondError(c, err)
		return
	}

	bannerFile, err := c.FormFile("banner")
	if err != nil {
		helpers.RespondWithCode(c, http.StatusBadRequest, services.ErrInvalidInput.Code, "Banner file is required.", nil)
		return
	}

	bannerPath, err := helpers.UploadFile(c, bannerFile, "event_banners", h.Upload)
	if err != nil {
		helpers.RespondWithCode(c, http.StatusBadRequest, services.ErrInvalidInput.Code, err.Error(), nil)
		return
	}

	event, previous, err := h.Events.SetBanner(c.Request.Context(), actor, ref, bannerPath)
	if err != nil {
		if rmErr := helpers.DeleteFile(bannerPath); rmErr != nil {
			h.Log.Warn("failed to remove orphaned banner", "path", bannerPath, "error", rmErr)
		}
		h.respondError(c, err)
		return
	}
	if err := helpers.DeleteFile(previous); err != nil {
		h.Log.Warn("failed to remove old banner", "path", previous, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Banner updated.",
		"event":   event,
	})
}

func (h *Handler) ListTicketTypes(c *gin.Context) {
	ticketTypes, err := h.Events.ListTicketTypes(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticket_types": ticketTypes})
}

func (h *Handler) CreateTicketType(c *gin.Context) {
	var req services.TicketTypeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	ticketType, err := h.Events.CreateTicketType(c.Request.Context(), middleware.CurrentActor(c), c.Param("ref"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Ticket type created successfully.",
		"ticket_type": ticketType,
	})
}
