package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/farellandr/eventive/internal/helpers"
	"github.com/farellandr/eventive/internal/models"
	"github.com/farellandr/eventive/internal/monitoring"
	"github.com/farellandr/eventive/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const MaxOrderQuantity = 10

type IssueRequest struct {
	EventRef     string     `json:"-"`
	TicketTypeID *uuid.UUID `json:"ticket_type_id"`
	Quantity     int        `json:"quantity" binding:"omitempty,min=1"`
	HolderName   string     `json:"holder_name" binding:"omitempty,max=120"`
	HolderEmail  string     `json:"holder_email" binding:"omitempty,email"`
	Notes        string     `json:"notes" binding:"omitempty,max=500"`
}

type IssueResult struct {
	OrderID         uuid.UUID       `json:"order_id"`
	Tickets         []models.Ticket `json:"tickets"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	RequiresPayment bool            `json:"requires_payment"`
}

type Issuer struct {
	db         *gorm.DB
	guard      *CapacityGuard
	paidMethod models.PaymentMethod
	notifier   notify.Notifier
	log        *slog.Logger
	newCode    func() (string, error)
}

// NewIssuer wires an issuer. paidMethod is the method recorded on tickets
// that need payment; leave it empty when no payment provider is configured.
func NewIssuer(db *gorm.DB, guard *CapacityGuard, paidMethod models.PaymentMethod, notifier notify.Notifier, log *slog.Logger) *Issuer {
	return &Issuer{db: db, guard: guard, paidMethod: paidMethod, notifier: notifier, log: log, newCode: helpers.GenerateTicketCode}
}

// Issue registers actor for an event. Every precondition is checked inside a
// single transaction holding a row lock on the event, so concurrent calls for
// the last seats are decided one at a time.
func (s *Issuer) Issue(ctx context.Context, actor Actor, req IssueRequest) (*IssueResult, error) {
	result, err := s.issue(ctx, actor, req)
	if err != nil {
		monitoring.TrackIssuance(outcomeLabel(err))
		return nil, err
	}
	monitoring.TrackIssuance("issued")

	notify.Async(s.notifier, s.log, notify.EventChannel(result.Tickets[0].EventID.String()), map[string]any{
		"type":     "tickets.issued",
		"order_id": result.OrderID,
		"quantity": len(result.Tickets),
		"status":   result.Tickets[0].Status,
	})
	return result, nil
}

func (s *Issuer) issue(ctx context.Context, actor Actor, req IssueRequest) (*IssueResult, error) {
	if err := Authorize(actor, ActionRegister); err != nil {
		return nil, err
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return nil, ErrInvalidInput.WithMessage("Quantity must be at least 1.")
	}
	if req.Quantity > MaxOrderQuantity {
		return nil, ErrQuantityExceeded
	}

	var result *IssueResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := loadEvent(tx, req.EventRef, true)
		if err != nil {
			return err
		}
		if event.Status != models.EventPublished {
			return ErrEventNotAvailable
		}

		ticketType, err := s.resolveTicketType(tx, event, req)
		if err != nil {
			return err
		}

		if err := s.guard.Check(tx, event, ticketType, req.Quantity); err != nil {
			return err
		}

		if ticketType == nil {
			var held int64
			err := tx.Model(&models.Ticket{}).
				Where("event_id = ? AND user_id = ? AND status IN ?", event.ID, actor.UserID, models.SeatHoldingStatuses).
				Count(&held).Error
			if err != nil {
				return fmt.Errorf("count registrations: %w", err)
			}
			if held > 0 {
				return ErrAlreadyRegistered
			}
		}

		price, currency := event.Price, event.Currency
		if ticketType != nil {
			price, currency = ticketType.Price, ticketType.Currency
		}
		if !price.IsZero() && s.paidMethod == "" {
			return ErrPaymentsDisabled
		}

		var user models.User
		if err := tx.Where("id = ?", actor.UserID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}

		tickets, err := s.buildTickets(event, ticketType, &user, req, price, currency)
		if err != nil {
			return err
		}
		if err := tx.Create(&tickets).Error; err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("create tickets: %w", err)
		}

		result = &IssueResult{
			OrderID:         tickets[0].OrderID,
			Tickets:         tickets,
			Total:           price.Mul(decimal.NewFromInt(int64(len(tickets)))),
			Currency:        currency,
			RequiresPayment: !price.IsZero(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Issuer) resolveTicketType(tx *gorm.DB, event *models.Event, req IssueRequest) (*models.TicketType, error) {
	if req.TicketTypeID == nil {
		var types int64
		if err := tx.Model(&models.TicketType{}).Where("event_id = ?", event.ID).Count(&types).Error; err != nil {
			return nil, fmt.Errorf("count ticket types: %w", err)
		}
		if types > 0 {
			return nil, ErrTicketTypeRequired
		}
		if req.Quantity != 1 {
			return nil, ErrQuantityExceeded.WithMessage("Only one registration per person is allowed for this event.")
		}
		return nil, nil
	}

	var ticketType models.TicketType
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND event_id = ?", *req.TicketTypeID, event.ID).
		First(&ticketType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketTypeNotFound
		}
		return nil, fmt.Errorf("load ticket type: %w", err)
	}
	if req.Quantity > ticketType.MaxPerOrder {
		return nil, ErrQuantityExceeded.WithMessage(
			fmt.Sprintf("At most %d %s tickets can be bought per order.", ticketType.MaxPerOrder, ticketType.Name))
	}
	return &ticketType, nil
}

func (s *Issuer) buildTickets(event *models.Event, ticketType *models.TicketType, user *models.User, req IssueRequest, price decimal.Decimal, currency string) ([]models.Ticket, error) {
	holderName := req.HolderName
	if holderName == "" {
		holderName = user.Name
	}
	holderEmail := req.HolderEmail
	if holderEmail == "" {
		holderEmail = user.Email
	}

	status, paymentStatus, method := models.TicketConfirmed, models.PaymentCompleted, models.PaymentMethodFree
	if !price.IsZero() {
		status, paymentStatus, method = models.TicketPending, models.PaymentPending, s.paidMethod
	}

	orderID := uuid.New()
	tickets := make([]models.Ticket, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}

		ticket := models.Ticket{
			Code:          code,
			OrderID:       orderID,
			EventID:       event.ID,
			UserID:        &user.ID,
			HolderName:    holderName,
			HolderEmail:   holderEmail,
			Status:        status,
			PaymentStatus: paymentStatus,
			PaymentMethod: method,
			Price:         price,
			Currency:      currency,
			Notes:         req.Notes,
		}
		if ticketType != nil {
			ticket.TicketTypeID = &ticketType.ID
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func outcomeLabel(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return "error"
}
