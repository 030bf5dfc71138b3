package handlers

import (
	"io"
	"net/http"

	"github.com/farellandr/eventive/internal/helpers"
	"github.com/farellandr/eventive/internal/middleware"
	"github.com/farellandr/eventive/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxWebhookBytes = 64 << 10

type OrderRequest struct {
	OrderID uuid.UUID `json:"order_id" binding:"required"`
}

func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	result, err := h.Payments.CreateIntent(c.Request.Context(), middleware.CurrentActor(c), req.OrderID)
	h.respondPayment(c, result, err)
}

func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err)
		return
	}

	result, err := h.Payments.Confirm(c.Request.Context(), middleware.CurrentActor(c), req.OrderID)
	h.respondPayment(c, result, err)
}

func (h *Handler) RefundOrder(c *gin.Context) {
	orderID, ok := h.uuidParam(c, "orderId", "order")
	if !ok {
		return
	}

	result, err := h.Payments.Refund(c.Request.Context(), middleware.CurrentActor(c), orderID)
	h.respondPayment(c, result, err)
}

// respondPayment sends provider-side failures as a 502 carrying the
// success=false result.
func (h *Handler) respondPayment(c *gin.Context, result *services.PaymentResult, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !result.Success {
		c.JSON(http.StatusBadGateway, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PaymentWebhook receives provider callbacks. The raw body is read unparsed
// because signatures are computed over the exact bytes.
func (h *Handler) PaymentWebhook(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
		if err != nil {
			helpers.RespondWithCode(c, http.StatusBadRequest, services.ErrInvalidInput.Code, "Could not read request body.", nil)
			return
		}

		result, err := h.Payments.HandleWebhook(c.Request.Context(), provider, c.Request.Header, payload)
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"received": true,
			"replay":   result.Replay,
		})
	}
}
