package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CheckIn struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TicketID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_checkin_ticket_event" json:"ticket_id"`
	Ticket      *Ticket    `json:"ticket,omitempty"`
	EventID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_checkin_ticket_event;index" json:"event_id"`
	OperatorID  *uuid.UUID `gorm:"type:uuid" json:"operator_id,omitempty"`
	Location    string     `json:"location,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CheckedInAt time.Time  `gorm:"not null;index" json:"checked_in_at"`
}

func (checkIn *CheckIn) BeforeCreate(tx *gorm.DB) (err error) {
	if checkIn.ID == uuid.Nil {
		checkIn.ID = uuid.New()
	}
	if checkIn.CheckedInAt.IsZero() {
		checkIn.CheckedInAt = time.Now().UTC()
	}
	return
}
