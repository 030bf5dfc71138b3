package services

import (
	"context"
	"fmt"

	"github.com/farellandr/eventive/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CapacityGuard keeps issuance within event capacity and ticket type
// quantity. Counts are derived from ticket rows on every call.
type CapacityGuard struct {
	db *gorm.DB
}

func NewCapacityGuard(db *gorm.DB) *CapacityGuard {
	return &CapacityGuard{db: db}
}

// Check must run inside the transaction that holds the event row lock and will
// insert the tickets; tx is used for every read.
func (g *CapacityGuard) Check(tx *gorm.DB, event *models.Event, ticketType *models.TicketType, quantity int) error {
	if event.Capacity != nil {
		held, err := countTickets(tx, event.ID, nil, models.SeatHoldingStatuses)
		if err != nil {
			return err
		}
		if held+int64(quantity) > int64(*event.Capacity) {
			return ErrSoldOut
		}
	}

	if ticketType != nil && ticketType.Quantity != nil {
		held, err := countTickets(tx, event.ID, &ticketType.ID, models.SeatHoldingStatuses)
		if err != nil {
			return err
		}
		if held+int64(quantity) > int64(*ticketType.Quantity) {
			return ErrSoldOut.WithMessage(fmt.Sprintf("%s tickets are sold out.", ticketType.Name))
		}
	}
	return nil
}

type TicketTypeAvailability struct {
	TicketTypeID uuid.UUID `json:"ticket_type_id"`
	Name         string    `json:"name"`
	Quantity     *int      `json:"quantity"`
	Held         int64     `json:"held"`
	Remaining    *int64    `json:"remaining"`
	SoldOut      bool      `json:"sold_out"`
}

type Availability struct {
	Capacity    *int                     `json:"capacity"`
	Confirmed   int64                    `json:"confirmed"`
	Held        int64                    `json:"held"`
	Remaining   *int64                   `json:"remaining"`
	SoldOut     bool                     `json:"sold_out"`
	TicketTypes []TicketTypeAvailability `json:"ticket_types,omitempty"`
}

func (g *CapacityGuard) Availability(ctx context.Context, event *models.Event) (*Availability, error) {
	db := g.db.WithContext(ctx)

	held, err := countTickets(db, event.ID, nil, models.SeatHoldingStatuses)
	if err != nil {
		return nil, err
	}
	confirmed, err := countTickets(db, event.ID, nil, []models.TicketStatus{models.TicketConfirmed, models.TicketUsed})
	if err != nil {
		return nil, err
	}

	out := &Availability{Capacity: event.Capacity, Confirmed: confirmed, Held: held}
	out.Remaining, out.SoldOut = remaining(event.Capacity, held)

	var ticketTypes []models.TicketType
	if err := db.Where("event_id = ?", event.ID).Order("created_at").Find(&ticketTypes).Error; err != nil {
		return nil, fmt.Errorf("load ticket types: %w", err)
	}
	for _, tt := range ticketTypes {
		typeHeld, err := countTickets(db, event.ID, &tt.ID, models.SeatHoldingStatuses)
		if err != nil {
			return nil, err
		}
		entry := TicketTypeAvailability{
			TicketTypeID: tt.ID,
			Name:         tt.Name,
			Quantity:     tt.Quantity,
			Held:         typeHeld,
		}
		entry.Remaining, entry.SoldOut = remaining(tt.Quantity, typeHeld)
		out.TicketTypes = append(out.TicketTypes, entry)
	}

	return out, nil
}

func remaining(limit *int, held int64) (*int64, bool) {
	if limit == nil {
		return nil, false
	}
	left := int64(*limit) - held
	if left < 0 {
		left = 0
	}
	return &left, left == 0
}

func countTickets(db *gorm.DB, eventID uuid.UUID, ticketTypeID *uuid.UUID, statuses []models.TicketStatus) (int64, error) {
	query := db.Model(&models.Ticket{}).Where("event_id = ? AND status IN ?", eventID, statuses)
	if ticketTypeID != nil {
		query = query.Where("ticket_type_id = ?", *ticketTypeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return count, nil
}
