package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentEvent records a provider notification that has been applied, keyed by the
// provider's own event id so replays are recognised.
type PaymentEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Provider  string    `gorm:"not null;uniqueIndex:idx_payment_event_provider_event" json:"provider"`
	EventID   string    `gorm:"not null;uniqueIndex:idx_payment_event_provider_event" json:"event_id"`
	Type      string    `gorm:"not null" json:"type"`
	PaymentID string    `gorm:"index" json:"payment_id"`
	Outcome   string    `gorm:"not null" json:"outcome"`
	Affected  int64     `json:"affected"`
	CreatedAt time.Time `json:"created_at"`
}

func (paymentEvent *PaymentEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if paymentEvent.ID == uuid.Nil {
		paymentEvent.ID = uuid.New()
	}
	return
}
