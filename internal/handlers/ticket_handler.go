package handlers

import (
	"net/http"

	"github.com/farellandr/eventive/internal/middleware"
	"github.com/gin-gonic/gin"
)

func (h *Handler) MyTickets(c *gin.Context) {
	tickets, err := h.Tickets.Mine(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (h *Handler) GetTicket(c *gin.Context) {
	id, ok := h.uuidParam(c, "id", "ticket")
	if !ok {
		return
	}

	ticket, err := h.Tickets.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

func (h *Handler) TicketQR(c *gin.Context) {
	id, ok := h.uuidParam(c, "id", "ticket")
	if !ok {
		return
	}

	png, err := h.Tickets.QR(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) EventTickets(c *gin.Context) {
	tickets, err := h.Tickets.ForEvent(c.Request.Context(), middleware.CurrentActor(c), c.Param("ref"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}
