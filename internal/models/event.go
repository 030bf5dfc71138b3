package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventCancelled EventStatus = "CANCELLED"
	EventCompleted EventStatus = "COMPLETED"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventPublished, EventCancelled, EventCompleted:
		return true
	}
	return false
}

type Event struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string          `gorm:"not null" json:"title"`
	Slug        string          `gorm:"uniqueIndex;not null" json:"slug"`
	Description string          `gorm:"not null" json:"description"`
	Category    string          `gorm:"index;not null" json:"category"`
	Location    string          `gorm:"not null" json:"location"`
	StartTime   time.Time       `gorm:"not null" json:"start_time"`
	EndTime     time.Time       `gorm:"not null" json:"end_time"`
	Capacity    *int            `json:"capacity"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	Currency    string          `gorm:"not null;default:'USD'" json:"currency"`
	Status      EventStatus     `gorm:"index;not null;default:'DRAFT'" json:"status"`
	BannerPath  string          `json:"banner_path,omitempty"`
	OrganizerID uuid.UUID       `gorm:"type:uuid;not null;index" json:"organizer_id"`
	Organizer   *User           `gorm:"foreignKey:OrganizerID" json:"organizer,omitempty"`
	TicketTypes []TicketType    `gorm:"foreignKey:EventID" json:"ticket_types,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (event *Event) BeforeCreate(tx *gorm.DB) (err error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return
}
