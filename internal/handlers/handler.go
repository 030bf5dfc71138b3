package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/farellandr/eventive/internal/helpers"
	"github.com/farellandr/eventive/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Handler serves the HTTP API on top of the service layer.
type Handler struct {
	Users    *services.UserService
	Events   *services.EventService
	Issuer   *services.Issuer
	Payments *services.Reconciler
	CheckIns *services.CheckInService
	Tickets  *services.TicketService
	Upload   helpers.UploadConfig
	Log      *slog.Logger
}

var kindStatus = map[services.Kind]int{
	services.KindValidation:   http.StatusBadRequest,
	services.KindNotFound:     http.StatusNotFound,
	services.KindConflict:     http.StatusConflict,
	services.KindUnauthorized: http.StatusUnauthorized,
	services.KindForbidden:    http.StatusForbidden,
	services.KindUnavailable:  http.StatusServiceUnavailable,
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		status, ok := kindStatus[svcErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		helpers.RespondWithCode(c, status, svcErr.Code, svcErr.Message, nil)
		return
	}

	h.Log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	helpers.RespondWithError(c, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}

// respondBindError turns binding failures into a 400 listing the offending
// fields.
func (h *Handler) respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[toSnake(fe.Field())] = fieldMessage(fe)
		}
		helpers.RespondWithCode(c, http.StatusBadRequest, services.ErrInvalidInput.Code, services.ErrInvalidInput.Message, fields)
		return
	}
	helpers.RespondWithCode(c, http.StatusBadRequest, services.ErrInvalidInput.Code, "Invalid input. Please check your fields.", nil)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	default:
		return "is invalid"
	}
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (h *Handler) uuidParam(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		helpers.RespondWithCode(c, http.StatusBadRequest, services.ErrInvalidInput.Code, fmt.Sprintf("Invalid %s ID.", what), nil)
		return uuid.Nil, false
	}
	return id, true
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
