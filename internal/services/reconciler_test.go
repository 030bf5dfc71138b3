package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/farellandr/eventive/internal/models"
	"github.com/farellandr/eventive/internal/notify"
	"github.com/farellandr/eventive/internal/payments"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type paidOrder struct {
	result *IssueResult
	buyer  Actor
	event  models.Event
}

func (f *fixture) paidOrder(paymentID string) paidOrder {
	f.t.Helper()

	organizer, _ := f.user(models.RoleOrganizer)
	event := f.event(organizer, price("20.00"))
	_, buyer := f.user(models.RoleAttendee)
	result := f.issue(buyer, event)
	if paymentID != "" {
		require.NoError(f.t, f.db.Model(&models.Ticket{}).
			Where("order_id = ?", result.OrderID).
			Update("payment_id", paymentID).Error)
	}
	return paidOrder{result: result, buyer: buyer, event: event}
}

func newReconciler(f *fixture, provider payments.Provider) *Reconciler {
	return NewReconciler(f.db, provider, notify.Noop{}, discardLogger())
}

func TestWebhookSucceededConfirmsOrder(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("pi_123")
	provider := new(MockProvider)
	provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&payments.Notification{
		EventID:   "evt_1",
		Type:      "payment_intent.succeeded",
		PaymentID: "pi_123",
		Outcome:   payments.OutcomeSucceeded,
	}, nil)
	r := newReconciler(f, provider)

	result, err := r.HandleWebhook(context.Background(), "stripe", http.Header{}, []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, result.Replay)
	assert.EqualValues(t, 1, result.Affected)

	ticket := f.reload(order.result.Tickets[0])
	assert.Equal(t, models.TicketConfirmed, ticket.Status)
	assert.Equal(t, models.PaymentCompleted, ticket.PaymentStatus)
}

func TestWebhookReplayDoesNotTransitionAgain(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("pi_replay")
	succeeded := &payments.Notification{
		EventID: "evt_success", Type: "payment_intent.succeeded", PaymentID: "pi_replay", Outcome: payments.OutcomeSucceeded,
	}
	refunded := &payments.Notification{
		EventID: "evt_refund", Type: "charge.refunded", PaymentID: "pi_replay", Outcome: payments.OutcomeRefunded,
	}
	provider := new(MockProvider)
	provider.On("ParseWebhook", mock.Anything, []byte("success")).Return(succeeded, nil)
	provider.On("ParseWebhook", mock.Anything, []byte("refund")).Return(refunded, nil)
	r := newReconciler(f, provider)
	ctx := context.Background()

	_, err := r.HandleWebhook(ctx, "stripe", http.Header{}, []byte("success"))
	require.NoError(t, err)

	replay, err := r.HandleWebhook(ctx, "stripe", http.Header{}, []byte("success"))
	require.NoError(t, err)
	assert.True(t, replay.Replay)
	assert.Zero(t, replay.Affected)

	ticket := f.reload(order.result.Tickets[0])
	assert.Equal(t, models.TicketConfirmed, ticket.Status)
	assert.Equal(t, models.PaymentCompleted, ticket.PaymentStatus)

	_, err = r.HandleWebhook(ctx, "stripe", http.Header{}, []byte("refund"))
	require.NoError(t, err)

	// A late replay of the success event must not resurrect a refunded ticket.
	_, err = r.HandleWebhook(ctx, "stripe", http.Header{}, []byte("success"))
	require.NoError(t, err)
	ticket = f.reload(order.result.Tickets[0])
	assert.Equal(t, models.TicketRefunded, ticket.Status)
	assert.Equal(t, models.PaymentRefunded, ticket.PaymentStatus)

	var ledger int64
	require.NoError(t, f.db.Model(&models.PaymentEvent{}).Count(&ledger).Error)
	assert.EqualValues(t, 2, ledger)
}

func TestWebhookDistinctEventsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("pi_twice")
	provider := new(MockProvider)
	provider.On("ParseWebhook", mock.Anything, []byte("a")).Return(&payments.Notification{
		EventID: "evt_a", PaymentID: "pi_twice", Outcome: payments.OutcomeSucceeded,
	}, nil)
	provider.On("ParseWebhook", mock.Anything, []byte("b")).Return(&payments.Notification{
		EventID: "evt_b", PaymentID: "pi_twice", Outcome: payments.OutcomeFailed,
	}, nil)
	r := newReconciler(f, provider)

	_, err := r.HandleWebhook(context.Background(), "stripe", http.Header{}, []byte("a"))
	require.NoError(t, err)
	result, err := r.HandleWebhook(context.Background(), "stripe", http.Header{}, []byte("b"))
	require.NoError(t, err)

	assert.False(t, result.Replay)
	assert.Zero(t, result.Affected)
	assert.Equal(t, models.TicketConfirmed, f.reload(order.result.Tickets[0]).Status)
}

func TestWebhookFailedCancelsOrder(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("pi_fail")
	provider := new(MockProvider)
	provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&payments.Notification{
		EventID: "evt_fail", PaymentID: "pi_fail", Outcome: payments.OutcomeFailed,
	}, nil)
	r := newReconciler(f, provider)

	_, err := r.HandleWebhook(context.Background(), "stripe", http.Header{}, nil)
	require.NoError(t, err)

	ticket := f.reload(order.result.Tickets[0])
	assert.Equal(t, models.TicketCancelled, ticket.Status)
	assert.Equal(t, models.PaymentFailed, ticket.PaymentStatus)
}

func TestWebhookFallsBackToOrderReference(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("")
	provider := new(MockProvider)
	provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&payments.Notification{
		EventID: "evt_meta", PaymentID: "pi_unknown", OrderID: order.result.OrderID, Outcome: payments.OutcomeSucceeded,
	}, nil)
	r := newReconciler(f, provider)

	result, err := r.HandleWebhook(context.Background(), "stripe", http.Header{}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Affected)
	assert.Equal(t, models.TicketConfirmed, f.reload(order.result.Tickets[0]).Status)
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("pi_sig")
	provider := new(MockProvider)
	provider.On("ParseWebhook", mock.Anything, mock.Anything).
		Return(nil, errors.Join(payments.ErrInvalidSignature, errors.New("bad hmac")))
	r := newReconciler(f, provider)

	_, err := r.HandleWebhook(context.Background(), "stripe", http.Header{}, []byte("{}"))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	var ledger int64
	require.NoError(t, f.db.Model(&models.PaymentEvent{}).Count(&ledger).Error)
	assert.Zero(t, ledger)
	assert.Equal(t, models.TicketPending, f.reload(order.result.Tickets[0]).Status)
}

func TestWebhookUnknownProvider(t *testing.T) {
	f := newFixture(t)

	_, err := newReconciler(f, new(MockProvider)).HandleWebhook(context.Background(), "xendit", http.Header{}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = newReconciler(f, nil).HandleWebhook(context.Background(), "stripe", http.Header{}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestCreateIntentStoresPaymentID(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("")
	provider := new(MockProvider)
	provider.On("CreateIntent", mock.Anything, mock.MatchedBy(func(req payments.IntentRequest) bool {
		return req.OrderID == order.result.OrderID && req.Amount.Equal(decimal.RequireFromString("20"))
	})).Return(&payments.Intent{PaymentID: "pi_new", ClientSecret: "secret"}, nil)
	r := newReconciler(f, provider)

	result, err := r.CreateIntent(context.Background(), order.buyer, order.result.OrderID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "secret", result.Intent.ClientSecret)

	ticket := f.reload(order.result.Tickets[0])
	require.NotNil(t, ticket.PaymentID)
	assert.Equal(t, "pi_new", *ticket.PaymentID)
	provider.AssertExpectations(t)
}

func TestCreateIntentChecks(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("")
	_, stranger := f.user(models.RoleAttendee)
	r := newReconciler(f, new(MockProvider))

	_, err := r.CreateIntent(context.Background(), stranger, order.result.OrderID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = r.CreateIntent(context.Background(), order.buyer, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = newReconciler(f, nil).CreateIntent(context.Background(), order.buyer, order.result.OrderID)
	assert.ErrorIs(t, err, ErrPaymentsDisabled)

	f.setStatus(order.result.Tickets[0], models.TicketConfirmed)
	_, err = r.CreateIntent(context.Background(), order.buyer, order.result.OrderID)
	assert.ErrorIs(t, err, ErrOrderNotPending)
}

func TestCreateIntentUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("")
	provider := new(MockProvider)
	provider.On("CreateIntent", mock.Anything, mock.Anything).Return(nil, errors.New("card_declined"))
	r := newReconciler(f, provider)

	result, err := r.CreateIntent(context.Background(), order.buyer, order.result.OrderID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "card_declined", result.Error)
	assert.Nil(t, f.reload(order.result.Tickets[0]).PaymentID)
}

func TestConfirmAppliesProviderStatus(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("pi_confirm")
	provider := new(MockProvider)
	provider.On("Status", mock.Anything, "pi_confirm").Return(payments.OutcomeSucceeded, nil)
	r := newReconciler(f, provider)

	result, err := r.Confirm(context.Background(), order.buyer, order.result.OrderID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, models.PaymentCompleted, result.Status)
	assert.Equal(t, models.TicketConfirmed, f.reload(order.result.Tickets[0]).Status)
}

func TestRefund(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("pi_refund")
	require.NoError(t, f.db.Model(&models.Ticket{}).Where("order_id = ?", order.result.OrderID).
		Updates(map[string]any{"status": models.TicketConfirmed, "payment_status": models.PaymentCompleted}).Error)

	provider := new(MockProvider)
	provider.On("Refund", mock.Anything, "pi_refund").Return(payments.OutcomeRefunded, nil)
	r := newReconciler(f, provider)

	result, err := r.Refund(context.Background(), order.buyer, order.result.OrderID)
	require.NoError(t, err)
	assert.True(t, result.Success)

	ticket := f.reload(order.result.Tickets[0])
	assert.Equal(t, models.TicketRefunded, ticket.Status)
	assert.Equal(t, models.PaymentRefunded, ticket.PaymentStatus)

	_, err = r.Refund(context.Background(), order.buyer, order.result.OrderID)
	assert.ErrorIs(t, err, ErrOrderNotRefundable)
}

func TestRefundUnsupportedByProvider(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("inv_1")
	f.setStatus(order.result.Tickets[0], models.TicketConfirmed)
	require.NoError(t, f.db.Model(&models.Ticket{}).Where("order_id = ?", order.result.OrderID).
		Update("payment_status", models.PaymentCompleted).Error)

	provider := new(MockProvider)
	provider.On("Refund", mock.Anything, "inv_1").Return(payments.Outcome(""), payments.ErrUnsupported)
	r := newReconciler(f, provider)

	result, err := r.Refund(context.Background(), order.buyer, order.result.OrderID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, models.TicketConfirmed, f.reload(order.result.Tickets[0]).Status)
}
