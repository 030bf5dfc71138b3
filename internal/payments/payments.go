// Package payments talks to external payment providers: it opens payment
// intents or invoices for pending orders, issues refunds, and turns signed
// provider callbacks into provider-neutral notifications.
package payments

import (
	"context"
	"errors"
	"net/http"

	"github.com/farellandr/eventive/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeRefunded  Outcome = "refunded"
	OutcomePending   Outcome = "pending"
	OutcomeIgnored   Outcome = "ignored"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnsupported      = errors.New("operation not supported by payment provider")
)

type IntentRequest struct {
	OrderID       uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Description   string
	CustomerEmail string
}

type Intent struct {
	PaymentID    string          `json:"payment_id"`
	ClientSecret string          `json:"client_secret,omitempty"`
	PaymentURL   string          `json:"payment_url,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

// Notification is a verified provider callback reduced to what the
// reconciler needs.
type Notification struct {
	EventID   string
	Type      string
	PaymentID string
	OrderID   uuid.UUID
	Outcome   Outcome
}

type Provider interface {
	Name() string
	Method() models.PaymentMethod
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	Status(ctx context.Context, paymentID string) (Outcome, error)
	Refund(ctx context.Context, paymentID string) (Outcome, error)
	ParseWebhook(header http.Header, payload []byte) (*Notification, error)
}

var hundred = decimal.NewFromInt(100)

// toMinorUnits converts an amount into the smallest currency unit.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func parseOrderID(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
