package services

import (
	"github.com/farellandr/eventive/internal/models"
	"github.com/google/uuid"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uuid.UUID
	Role   models.RoleName
}

func (a Actor) Authenticated() bool {
	return a.UserID != uuid.Nil && a.Role.Valid()
}

type Action int

const (
	ActionRegister Action = iota
	ActionCreateEvent
	ActionManageEvent
	ActionViewEventTickets
	ActionCheckIn
	ActionViewTicket
	ActionPayOrder
	ActionRefundOrder
)

// Authorize decides whether actor may perform action on a resource owned by
// any of owners. Admins may do everything.
func Authorize(actor Actor, action Action, owners ...uuid.UUID) error {
	if !actor.Authenticated() {
		return ErrUnauthorized
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}

	switch action {
	case ActionRegister:
		return nil
	case ActionCreateEvent:
		if actor.Role == models.RoleOrganizer {
			return nil
		}
	case ActionManageEvent, ActionViewEventTickets, ActionCheckIn:
		if actor.Role == models.RoleOrganizer && owns(actor, owners) {
			return nil
		}
	case ActionViewTicket, ActionPayOrder, ActionRefundOrder:
		if owns(actor, owners) {
			return nil
		}
	}
	return ErrForbidden
}

func owns(actor Actor, owners []uuid.UUID) bool {
	for _, owner := range owners {
		if owner != uuid.Nil && owner == actor.UserID {
			return true
		}
	}
	return false
}
