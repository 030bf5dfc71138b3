package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TicketStatus string

const (
	TicketPending   TicketStatus = "PENDING"
	TicketConfirmed TicketStatus = "CONFIRMED"
	TicketCancelled TicketStatus = "CANCELLED"
	TicketRefunded  TicketStatus = "REFUNDED"
	TicketUsed      TicketStatus = "USED"
)

// SeatHoldingStatuses are the ticket states that occupy capacity.
var SeatHoldingStatuses = []TicketStatus{TicketPending, TicketConfirmed, TicketUsed}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentMethodFree   PaymentMethod = "FREE"
	PaymentMethodStripe PaymentMethod = "STRIPE"
	PaymentMethodXendit PaymentMethod = "XENDIT"
)

const DefaultMaxPerOrder = 10

type TicketType struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EventID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"event_id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	Currency    string          `gorm:"not null;default:'USD'" json:"currency"`
	Quantity    *int            `json:"quantity"`
	MaxPerOrder int             `gorm:"not null;default:10" json:"max_per_order"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (ticketType *TicketType) BeforeCreate(tx *gorm.DB) (err error) {
	if ticketType.ID == uuid.Nil {
		ticketType.ID = uuid.New()
	}
	if ticketType.MaxPerOrder == 0 {
		ticketType.MaxPerOrder = DefaultMaxPerOrder
	}
	return
}

type Ticket struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Code          string          `gorm:"uniqueIndex;not null" json:"code"`
	OrderID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	EventID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_ticket_event_user" json:"event_id"`
	Event         *Event          `json:"event,omitempty"`
	TicketTypeID  *uuid.UUID      `gorm:"type:uuid;index" json:"ticket_type_id,omitempty"`
	TicketType    *TicketType     `json:"ticket_type,omitempty"`
	UserID        *uuid.UUID      `gorm:"type:uuid;index:idx_ticket_event_user" json:"user_id,omitempty"`
	HolderName    string          `json:"holder_name,omitempty"`
	HolderEmail   string          `json:"holder_email,omitempty"`
	Status        TicketStatus    `gorm:"index;not null" json:"status"`
	PaymentStatus PaymentStatus   `gorm:"not null" json:"payment_status"`
	PaymentMethod PaymentMethod   `gorm:"not null" json:"payment_method"`
	PaymentID     *string         `gorm:"index" json:"payment_id,omitempty"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	Currency      string          `gorm:"not null" json:"currency"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (ticket *Ticket) BeforeCreate(tx *gorm.DB) (err error) {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	return
}
