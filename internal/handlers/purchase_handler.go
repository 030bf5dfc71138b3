package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/farellandr/eventive/internal/middleware"
	"github.com/farellandr/eventive/internal/services"
	"github.com/gin-gonic/gin"
)

// RegisterForEvent is the one-ticket-per-person registration of events that
// do not sell ticket types.
func (h *Handler) RegisterForEvent(c *gin.Context) {
	var req services.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondBindError(c, err)
		return
	}
	req.TicketTypeID = nil
	req.Quantity = 1

	h.issue(c, req, "Registration successful.")
}

func (h *Handler) PurchaseTickets(c *gin.Context) {
	var req services.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	h.issue(c, req, "Tickets reserved successfully.")
}

func (h *Handler) issue(c *gin.Context, req services.IssueRequest, message string) {
	req.EventRef = c.Param("ref")

	result, err := h.Issuer.Issue(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if result.RequiresPayment {
		message = "Tickets reserved. Complete payment to confirm them."
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": message,
		"order":   result,
	})
}
