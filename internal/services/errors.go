package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindUnavailable
)

// Error is a user-facing failure. Two errors match under errors.Is when they
// share a Code, so callers can attach a specific message to a sentinel.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) WithMessage(message string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: message}
}

var (
	ErrInvalidInput = &Error{KindValidation, "validation_error", "Invalid input. Please check your fields."}
	ErrUnauthorized = &Error{KindUnauthorized, "unauthorized", "Authentication required."}
	ErrForbidden    = &Error{KindForbidden, "forbidden", "You don't have permission to perform this action."}
	ErrDuplicate    = &Error{KindConflict, "duplicate", "The record conflicts with an existing one."}

	ErrInvalidCredentials = &Error{KindUnauthorized, "invalid_credentials", "Invalid credentials."}
	ErrEmailTaken         = &Error{KindConflict, "email_taken", "User already exists."}
	ErrInvalidRole        = &Error{KindValidation, "invalid_role", "Invalid role."}
	ErrUserNotFound       = &Error{KindNotFound, "user_not_found", "User not found."}

	ErrEventNotFound      = &Error{KindNotFound, "event_not_found", "Event not found."}
	ErrEventNotAvailable  = &Error{KindValidation, "event_not_available", "Event is not open for registration."}
	ErrEventHasTickets    = &Error{KindConflict, "event_has_tickets", "Event still has active tickets."}
	ErrTicketTypeNotFound = &Error{KindNotFound, "ticket_type_not_found", "Ticket type not found for this event."}
	ErrTicketTypeRequired = &Error{KindValidation, "ticket_type_required", "This event sells tickets by type; choose a ticket type."}
	ErrQuantityExceeded   = &Error{KindValidation, "quantity_exceeded", "Requested quantity exceeds the per-order maximum."}
	ErrSoldOut            = &Error{KindConflict, "sold_out", "Event is sold out."}
	ErrAlreadyRegistered  = &Error{KindConflict, "already_registered", "You are already registered for this event."}

	ErrTicketNotFound     = &Error{KindNotFound, "ticket_not_found", "Ticket not found."}
	ErrWrongEvent         = &Error{KindValidation, "wrong_event", "Ticket belongs to a different event."}
	ErrTicketPending      = &Error{KindValidation, "ticket_pending", "Ticket payment has not been completed."}
	ErrTicketCancelled    = &Error{KindValidation, "ticket_cancelled", "Ticket has been cancelled."}
	ErrTicketRefunded     = &Error{KindValidation, "ticket_refunded", "Ticket has been refunded."}
	ErrAlreadyCheckedIn   = &Error{KindConflict, "already_checked_in", "Ticket has already been checked in."}
	ErrInvalidQRSignature = &Error{KindValidation, "invalid_qr_signature", "QR code signature is invalid."}

	ErrOrderNotFound      = &Error{KindNotFound, "order_not_found", "Order not found."}
	ErrOrderNotPending    = &Error{KindConflict, "order_not_pending", "Order is not awaiting payment."}
	ErrOrderNotRefundable = &Error{KindConflict, "order_not_refundable", "Only paid, confirmed orders can be refunded."}
	ErrPaymentsDisabled   = &Error{KindUnavailable, "payments_disabled", "Online payments are not configured."}
	ErrUnknownProvider    = &Error{KindNotFound, "unknown_provider", "Unknown payment provider."}
	ErrInvalidSignature   = &Error{KindValidation, "invalid_signature", "Webhook signature verification failed."}
)

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
