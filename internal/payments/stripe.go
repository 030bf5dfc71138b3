package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/farellandr/eventive/internal/models"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const StripeSignatureHeader = "Stripe-Signature"

type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Stripe{api: api, webhookSecret: webhookSecret}
}

func (s *Stripe) Name() string { return "stripe" }

func (s *Stripe) Method() models.PaymentMethod { return models.PaymentMethodStripe }

func (s *Stripe) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(toMinorUnits(req.Amount)),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}

	return &Intent{
		PaymentID:    pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       req.Amount,
		Currency:     req.Currency,
	}, nil
}

func (s *Stripe) Status(ctx context.Context, paymentID string) (Outcome, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return "", fmt.Errorf("stripe retrieve payment intent: %w", err)
	}
	return intentOutcome(pi.Status), nil
}

func (s *Stripe) Refund(ctx context.Context, paymentID string) (Outcome, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentID)}
	params.Context = ctx

	refund, err := s.api.Refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create refund: %w", err)
	}

	switch refund.Status {
	case stripe.RefundStatusSucceeded:
		return OutcomeRefunded, nil
	case stripe.RefundStatusPending, stripe.RefundStatusRequiresAction:
		return OutcomePending, nil
	default:
		return OutcomeFailed, nil
	}
}

func (s *Stripe) ParseWebhook(header http.Header, payload []byte) (*Notification, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		header.Get(StripeSignatureHeader),
		s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	n := &Notification{EventID: event.ID, Type: string(event.Type), Outcome: OutcomeIgnored}
	if event.Data == nil {
		return n, nil
	}

	switch n.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		n.PaymentID = pi.ID
		n.OrderID = parseOrderID(pi.Metadata["order_id"])
		n.Outcome = OutcomeSucceeded
		if n.Type != "payment_intent.succeeded" {
			n.Outcome = OutcomeFailed
		}
	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("decode charge: %w", err)
		}
		if charge.PaymentIntent != nil {
			n.PaymentID = charge.PaymentIntent.ID
		}
		// Partial refunds leave the tickets valid.
		if charge.Refunded {
			n.Outcome = OutcomeRefunded
		}
	}

	return n, nil
}

func intentOutcome(status stripe.PaymentIntentStatus) Outcome {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return OutcomeSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return OutcomeFailed
	default:
		return OutcomePending
	}
}
