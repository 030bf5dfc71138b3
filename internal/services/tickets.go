package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/farellandr/eventive/internal/helpers"
	"github.com/farellandr/eventive/internal/models"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"
)

const qrImageSize = 256

type TicketService struct {
	db     *gorm.DB
	signer *helpers.TicketSigner
}

func NewTicketService(db *gorm.DB, signer *helpers.TicketSigner) *TicketService {
	return &TicketService{db: db, signer: signer}
}

func (s *TicketService) Mine(ctx context.Context, actor Actor) ([]models.Ticket, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}

	tickets := []models.Ticket{}
	err := s.db.WithContext(ctx).
		Preload("Event").
		Preload("TicketType").
		Where("user_id = ?", actor.UserID).
		Order("created_at DESC").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// Get returns a ticket to its holder, the event organizer or an admin.
func (s *TicketService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.WithContext(ctx).
		Preload("Event").
		Preload("TicketType").
		Where("id = ?", id).
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("load ticket: %w", err)
	}

	owners := []uuid.UUID{holderOf(&ticket)}
	if ticket.Event != nil {
		owners = append(owners, ticket.Event.OrganizerID)
	}
	if err := Authorize(actor, ActionViewTicket, owners...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (s *TicketService) ForEvent(ctx context.Context, actor Actor, ref string) ([]models.Ticket, error) {
	event, err := loadEvent(s.db.WithContext(ctx), ref, false)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionViewEventTickets, event.OrganizerID); err != nil {
		return nil, err
	}

	tickets := []models.Ticket{}
	err = s.db.WithContext(ctx).
		Preload("TicketType").
		Where("event_id = ?", event.ID).
		Order("created_at").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("list event tickets: %w", err)
	}
	return tickets, nil
}

// QR renders the signed check-in payload of a ticket as a PNG. Only tickets
// that can be scanned get one.
func (s *TicketService) QR(ctx context.Context, actor Actor, id uuid.UUID) ([]byte, error) {
	ticket, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	switch ticket.Status {
	case models.TicketPending:
		return nil, ErrTicketPending
	case models.TicketCancelled:
		return nil, ErrTicketCancelled
	case models.TicketRefunded:
		return nil, ErrTicketRefunded
	}

	png, err := qrcode.Encode(s.signer.Payload(ticket.Code), qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
