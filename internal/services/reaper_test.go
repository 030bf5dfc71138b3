package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/farellandr/eventive/internal/models"
	"github.com/farellandr/eventive/internal/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReaperCancelsStalePendingTickets(t *testing.T) {
	f := newFixture(t)
	organizer, _ := f.user(models.RoleOrganizer)
	event := f.event(organizer, capacity(2), price("10"))
	_, stale := f.user(models.RoleAttendee)
	_, fresh := f.user(models.RoleAttendee)

	staleTicket := f.issue(stale, event).Tickets[0]
	freshTicket := f.issue(fresh, event).Tickets[0]
	require.NoError(t, f.db.Model(&models.Ticket{}).Where("id = ?", staleTicket.ID).
		UpdateColumn("created_at", time.Now().Add(-2*time.Hour)).Error)

	reaper := NewReaper(f.db, 30*time.Minute, time.Minute, discardLogger())
	expired, err := reaper.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, expired)

	reaped := f.reload(staleTicket)
	assert.Equal(t, models.TicketCancelled, reaped.Status)
	assert.Equal(t, models.PaymentFailed, reaped.PaymentStatus)
	assert.Equal(t, models.TicketPending, f.reload(freshTicket).Status)

	// The released seat can be sold again.
	_, another := f.user(models.RoleAttendee)
	_, err = f.issuer.Issue(context.Background(), another, IssueRequest{EventRef: event.Slug})
	assert.NoError(t, err)
}

func TestReaperLeavesStartedPaymentsToProvider(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("pi_late")
	ticket := order.result.Tickets[0]
	require.NoError(t, f.db.Model(&models.Ticket{}).Where("id = ?", ticket.ID).
		UpdateColumn("created_at", time.Now().Add(-2*time.Hour)).Error)

	reaper := NewReaper(f.db, 30*time.Minute, time.Minute, discardLogger())
	expired, err := reaper.Sweep(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Equal(t, models.TicketPending, f.reload(ticket).Status)

	provider := new(MockProvider)
	provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&payments.Notification{
		EventID:   "evt_late",
		Type:      "payment_intent.succeeded",
		PaymentID: "pi_late",
		Outcome:   payments.OutcomeSucceeded,
	}, nil)

	result, err := newReconciler(f, provider).HandleWebhook(context.Background(), "stripe", http.Header{}, []byte(`{}`))
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Affected)

	confirmed := f.reload(ticket)
	assert.Equal(t, models.TicketConfirmed, confirmed.Status)
	assert.Equal(t, models.PaymentCompleted, confirmed.PaymentStatus)
}

func TestReaperReleasesStartedPaymentOnProviderFailure(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder("pi_abandoned")
	ticket := order.result.Tickets[0]

	provider := new(MockProvider)
	provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&payments.Notification{
		EventID:   "evt_canceled",
		Type:      "payment_intent.canceled",
		PaymentID: "pi_abandoned",
		Outcome:   payments.OutcomeFailed,
	}, nil)

	_, err := newReconciler(f, provider).HandleWebhook(context.Background(), "stripe", http.Header{}, []byte(`{}`))
	require.NoError(t, err)

	cancelled := f.reload(ticket)
	assert.Equal(t, models.TicketCancelled, cancelled.Status)
	assert.Equal(t, models.PaymentFailed, cancelled.PaymentStatus)
}
