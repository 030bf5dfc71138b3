package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/farellandr/eventive/internal/models"
	"github.com/farellandr/eventive/internal/monitoring"
	"github.com/farellandr/eventive/internal/notify"
	"github.com/farellandr/eventive/internal/payments"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// transition is a guarded status change: it only touches tickets currently in
// from, which makes re-applying the same outcome a no-op.
type transition struct {
	from    models.TicketStatus
	to      models.TicketStatus
	payment models.PaymentStatus
}

var transitions = map[payments.Outcome]transition{
	payments.OutcomeSucceeded: {models.TicketPending, models.TicketConfirmed, models.PaymentCompleted},
	payments.OutcomeFailed:    {models.TicketPending, models.TicketCancelled, models.PaymentFailed},
	payments.OutcomeRefunded:  {models.TicketConfirmed, models.TicketRefunded, models.PaymentRefunded},
}

var errReplay = errors.New("payment event already applied")

// PaymentResult reports the outcome of a call to the payment provider.
// Provider failures come back as Success=false with Error set rather than as
// a Go error.
type PaymentResult struct {
	Success bool                 `json:"success"`
	OrderID uuid.UUID            `json:"order_id"`
	Status  models.PaymentStatus `json:"payment_status,omitempty"`
	Intent  *payments.Intent     `json:"intent,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type WebhookResult struct {
	Provider string           `json:"provider"`
	EventID  string           `json:"event_id"`
	Outcome  payments.Outcome `json:"outcome"`
	Replay   bool             `json:"replay"`
	Affected int64            `json:"affected"`
}

type Reconciler struct {
	db       *gorm.DB
	provider payments.Provider
	notifier notify.Notifier
	log      *slog.Logger
}

// NewReconciler wires a reconciler. provider may be nil, in which case every
// payment operation fails with ErrPaymentsDisabled.
func NewReconciler(db *gorm.DB, provider payments.Provider, notifier notify.Notifier, log *slog.Logger) *Reconciler {
	return &Reconciler{db: db, provider: provider, notifier: notifier, log: log}
}

func (r *Reconciler) CreateIntent(ctx context.Context, actor Actor, orderID uuid.UUID) (*PaymentResult, error) {
	tickets, err := r.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionPayOrder, holderOf(&tickets[0])); err != nil {
		return nil, err
	}
	if r.provider == nil {
		return nil, ErrPaymentsDisabled
	}

	total := decimal.Zero
	for _, ticket := range tickets {
		if ticket.Status != models.TicketPending || ticket.PaymentStatus != models.PaymentPending {
			return nil, ErrOrderNotPending
		}
		total = total.Add(ticket.Price)
	}

	first := tickets[0]
	intent, err := r.provider.CreateIntent(ctx, payments.IntentRequest{
		OrderID:       orderID,
		Amount:        total,
		Currency:      first.Currency,
		Description:   fmt.Sprintf("%d ticket(s) for %s", len(tickets), first.Event.Title),
		CustomerEmail: first.HolderEmail,
	})
	if err != nil {
		r.log.Error("create payment intent failed", "provider", r.provider.Name(), "order_id", orderID, "error", err)
		return &PaymentResult{Success: false, OrderID: orderID, Status: models.PaymentPending, Error: err.Error()}, nil
	}

	err = r.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("order_id = ? AND status = ?", orderID, models.TicketPending).
		Updates(map[string]any{
			"payment_id":     intent.PaymentID,
			"payment_method": r.provider.Method(),
		}).Error
	if err != nil {
		return nil, fmt.Errorf("store payment id: %w", err)
	}

	return &PaymentResult{Success: true, OrderID: orderID, Status: models.PaymentPending, Intent: intent}, nil
}

// Confirm asks the provider for the current state of an order's payment and
// applies it.
func (r *Reconciler) Confirm(ctx context.Context, actor Actor, orderID uuid.UUID) (*PaymentResult, error) {
	tickets, err := r.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionPayOrder, holderOf(&tickets[0])); err != nil {
		return nil, err
	}
	if r.provider == nil {
		return nil, ErrPaymentsDisabled
	}
	paymentID := tickets[0].PaymentID
	if paymentID == nil {
		return nil, ErrOrderNotPending.WithMessage("No payment has been started for this order.")
	}

	outcome, err := r.provider.Status(ctx, *paymentID)
	if err != nil {
		r.log.Error("payment status lookup failed", "provider", r.provider.Name(), "order_id", orderID, "error", err)
		return &PaymentResult{Success: false, OrderID: orderID, Status: tickets[0].PaymentStatus, Error: err.Error()}, nil
	}

	if _, err := applyOutcome(r.db.WithContext(ctx), outcome, orderID); err != nil {
		return nil, err
	}
	status, err := r.orderPaymentStatus(ctx, orderID)
	if err != nil {
		return nil, err
	}

	result := &PaymentResult{Success: outcome != payments.OutcomeFailed, OrderID: orderID, Status: status}
	if !result.Success {
		result.Error = "Payment failed."
	}
	return result, nil
}

// Refund refunds a paid order in full. The holder, the event organizer and
// admins may request it.
func (r *Reconciler) Refund(ctx context.Context, actor Actor, orderID uuid.UUID) (*PaymentResult, error) {
	tickets, err := r.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionRefundOrder, holderOf(&tickets[0]), tickets[0].Event.OrganizerID); err != nil {
		return nil, err
	}
	if r.provider == nil {
		return nil, ErrPaymentsDisabled
	}
	for _, ticket := range tickets {
		if ticket.Status != models.TicketConfirmed || ticket.PaymentStatus != models.PaymentCompleted || ticket.PaymentID == nil {
			return nil, ErrOrderNotRefundable
		}
	}

	outcome, err := r.provider.Refund(ctx, *tickets[0].PaymentID)
	if err != nil {
		if errors.Is(err, payments.ErrUnsupported) {
			return &PaymentResult{Success: false, OrderID: orderID, Status: models.PaymentCompleted,
				Error: fmt.Sprintf("Refunds are not supported by %s.", r.provider.Name())}, nil
		}
		r.log.Error("refund failed", "provider", r.provider.Name(), "order_id", orderID, "error", err)
		return &PaymentResult{Success: false, OrderID: orderID, Status: models.PaymentCompleted, Error: err.Error()}, nil
	}

	switch outcome {
	case payments.OutcomeRefunded:
		if _, err := applyOutcome(r.db.WithContext(ctx), outcome, orderID); err != nil {
			return nil, err
		}
		r.publish(&tickets[0], outcome)
		return &PaymentResult{Success: true, OrderID: orderID, Status: models.PaymentRefunded}, nil
	case payments.OutcomePending:
		// The provider finishes asynchronously and reports back via webhook.
		return &PaymentResult{Success: true, OrderID: orderID, Status: models.PaymentCompleted}, nil
	default:
		return &PaymentResult{Success: false, OrderID: orderID, Status: models.PaymentCompleted,
			Error: "Refund was declined by the payment provider."}, nil
	}
}

// HandleWebhook verifies and applies a provider notification. Each provider
// event id is recorded once; a replay is acknowledged without touching any
// ticket.
func (r *Reconciler) HandleWebhook(ctx context.Context, providerName string, header http.Header, payload []byte) (*WebhookResult, error) {
	if r.provider == nil || r.provider.Name() != providerName {
		return nil, ErrUnknownProvider
	}

	n, err := r.provider.ParseWebhook(header, payload)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			monitoring.TrackPaymentNotification(providerName, "invalid_signature")
			r.log.Warn("rejected webhook with invalid signature", "provider", providerName)
			return nil, ErrInvalidSignature
		}
		monitoring.TrackPaymentNotification(providerName, "malformed")
		return nil, ErrInvalidInput.WithMessage("Malformed webhook payload.")
	}

	result := &WebhookResult{Provider: providerName, EventID: n.EventID, Outcome: n.Outcome}
	var matched *models.Ticket

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := models.PaymentEvent{
			Provider:  providerName,
			EventID:   n.EventID,
			Type:      n.Type,
			PaymentID: n.PaymentID,
			Outcome:   string(n.Outcome),
		}
		if err := tx.Create(&entry).Error; err != nil {
			if isDuplicate(err) {
				return errReplay
			}
			return fmt.Errorf("record payment event: %w", err)
		}

		ticket, err := findNotificationTicket(tx, n)
		if err != nil || ticket == nil {
			return err
		}
		matched = ticket

		affected, err := applyOutcome(tx, n.Outcome, ticket.OrderID)
		if err != nil {
			return err
		}
		result.Affected = affected
		return tx.Model(&entry).Update("affected", affected).Error
	})
	if errors.Is(err, errReplay) {
		result.Replay = true
		monitoring.TrackPaymentNotification(providerName, "replay")
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	monitoring.TrackPaymentNotification(providerName, string(n.Outcome))
	switch {
	case matched == nil && n.Outcome != payments.OutcomeIgnored:
		r.log.Warn("payment notification matched no order", "provider", providerName, "event_id", n.EventID, "payment_id", n.PaymentID)
	case matched != nil && result.Affected == 0 && n.Outcome == payments.OutcomeSucceeded:
		r.log.Warn("payment succeeded for an order that is no longer pending",
			"provider", providerName, "order_id", matched.OrderID, "status", matched.Status)
	case matched != nil && result.Affected > 0:
		r.publish(matched, n.Outcome)
	}
	return result, nil
}

func (r *Reconciler) publish(ticket *models.Ticket, outcome payments.Outcome) {
	if ticket.UserID == nil {
		return
	}
	notify.Async(r.notifier, r.log, notify.UserChannel(ticket.UserID.String()), map[string]any{
		"type":     "payment." + string(outcome),
		"order_id": ticket.OrderID,
	})
}

func (r *Reconciler) loadOrder(ctx context.Context, orderID uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Preload("Event").
		Where("order_id = ?", orderID).
		Order("created_at").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if len(tickets) == 0 || tickets[0].Event == nil {
		return nil, ErrOrderNotFound
	}
	return tickets, nil
}

func (r *Reconciler) orderPaymentStatus(ctx context.Context, orderID uuid.UUID) (models.PaymentStatus, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&ticket).Error; err != nil {
		return "", fmt.Errorf("reload order: %w", err)
	}
	return ticket.PaymentStatus, nil
}

// findNotificationTicket locates one ticket of the order a notification is
// about: by stored payment id first, then by the order reference the provider
// echoed back.
func findNotificationTicket(tx *gorm.DB, n *payments.Notification) (*models.Ticket, error) {
	var tickets []models.Ticket
	if n.PaymentID != "" {
		if err := tx.Where("payment_id = ?", n.PaymentID).Limit(1).Find(&tickets).Error; err != nil {
			return nil, fmt.Errorf("find tickets by payment id: %w", err)
		}
	}
	if len(tickets) == 0 && n.OrderID != uuid.Nil {
		if err := tx.Where("order_id = ?", n.OrderID).Limit(1).Find(&tickets).Error; err != nil {
			return nil, fmt.Errorf("find tickets by order id: %w", err)
		}
	}
	if len(tickets) == 0 {
		return nil, nil
	}
	return &tickets[0], nil
}

func applyOutcome(db *gorm.DB, outcome payments.Outcome, orderID uuid.UUID) (int64, error) {
	t, ok := transitions[outcome]
	if !ok {
		return 0, nil
	}

	res := db.Model(&models.Ticket{}).
		Where("order_id = ? AND status = ?", orderID, t.from).
		Updates(map[string]any{
			"status":         t.to,
			"payment_status": t.payment,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("apply %s: %w", outcome, res.Error)
	}
	return res.RowsAffected, nil
}

func holderOf(ticket *models.Ticket) uuid.UUID {
	if ticket.UserID == nil {
		return uuid.Nil
	}
	return *ticket.UserID
}
