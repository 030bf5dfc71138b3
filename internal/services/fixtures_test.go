package services

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/farellandr/eventive/internal/helpers"
	"github.com/farellandr/eventive/internal/models"
	"github.com/farellandr/eventive/internal/notify"
	"github.com/farellandr/eventive/internal/payments"
	"github.com/farellandr/eventive/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSigningSecret = "ticket-signing-secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	t        *testing.T
	db       *gorm.DB
	guard    *CapacityGuard
	issuer   *Issuer
	events   *EventService
	checkIns *CheckInService
	tickets  *TicketService
	signer   *helpers.TicketSigner
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithMethod(t, models.PaymentMethodStripe)
}

func newFixtureWithMethod(t *testing.T, paidMethod models.PaymentMethod) *fixture {
	db := testutil.NewDB(t)
	guard := NewCapacityGuard(db)
	signer := helpers.NewTicketSigner(testSigningSecret)
	log := discardLogger()

	return &fixture{
		t:        t,
		db:       db,
		guard:    guard,
		issuer:   NewIssuer(db, guard, paidMethod, notify.Noop{}, log),
		events:   NewEventService(db, guard, "USD"),
		checkIns: NewCheckInService(db, signer, notify.Noop{}, log),
		tickets:  NewTicketService(db, signer),
		signer:   signer,
	}
}

func (f *fixture) user(role models.RoleName) (models.User, Actor) {
	f.t.Helper()

	var r models.Role
	require.NoError(f.t, f.db.Where("name = ?", role).First(&r).Error)

	user := models.User{
		Email:    uuid.NewString() + "@example.com",
		Name:     "Test " + string(role),
		Password: "not-a-real-hash",
		RoleID:   r.ID,
	}
	require.NoError(f.t, f.db.Omit("Role").Create(&user).Error)
	return user, Actor{UserID: user.ID, Role: role}
}

func (f *fixture) event(organizer models.User, mutate ...func(*models.Event)) models.Event {
	f.t.Helper()

	start := time.Now().Add(48 * time.Hour).UTC()
	event := models.Event{
		Title:       "Go Meetup",
		Slug:        "go-meetup-" + uuid.NewString()[:8],
		Description: "An evening of talks about Go.",
		Category:    "tech",
		Location:    "Jakarta",
		StartTime:   start,
		EndTime:     start.Add(3 * time.Hour),
		Price:       decimal.Zero,
		Currency:    "USD",
		Status:      models.EventPublished,
		OrganizerID: organizer.ID,
	}
	for _, m := range mutate {
		m(&event)
	}
	require.NoError(f.t, f.db.Create(&event).Error)
	return event
}

func (f *fixture) ticketType(event models.Event, mutate ...func(*models.TicketType)) models.TicketType {
	f.t.Helper()

	tt := models.TicketType{
		EventID:  event.ID,
		Name:     "General",
		Price:    decimal.Zero,
		Currency: "USD",
	}
	for _, m := range mutate {
		m(&tt)
	}
	require.NoError(f.t, f.db.Create(&tt).Error)
	return tt
}

func (f *fixture) issue(actor Actor, event models.Event) *IssueResult {
	f.t.Helper()

	result, err := f.issuer.Issue(context.Background(), actor, IssueRequest{EventRef: event.ID.String(), Quantity: 1})
	require.NoError(f.t, err)
	return result
}

func (f *fixture) reload(ticket models.Ticket) models.Ticket {
	f.t.Helper()

	var fresh models.Ticket
	require.NoError(f.t, f.db.Where("id = ?", ticket.ID).First(&fresh).Error)
	return fresh
}

func (f *fixture) setStatus(ticket models.Ticket, status models.TicketStatus) {
	f.t.Helper()
	require.NoError(f.t, f.db.Model(&models.Ticket{}).Where("id = ?", ticket.ID).Update("status", status).Error)
}

func capacity(n int) func(*models.Event) {
	return func(e *models.Event) { e.Capacity = &n }
}

func price(amount string) func(*models.Event) {
	return func(e *models.Event) { e.Price = decimal.RequireFromString(amount) }
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "stripe" }

func (m *MockProvider) Method() models.PaymentMethod { return models.PaymentMethodStripe }

func (m *MockProvider) CreateIntent(ctx context.Context, req payments.IntentRequest) (*payments.Intent, error) {
	args := m.Called(ctx, req)
	intent, _ := args.Get(0).(*payments.Intent)
	return intent, args.Error(1)
}

func (m *MockProvider) Status(ctx context.Context, paymentID string) (payments.Outcome, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(payments.Outcome), args.Error(1)
}

func (m *MockProvider) Refund(ctx context.Context, paymentID string) (payments.Outcome, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(payments.Outcome), args.Error(1)
}

func (m *MockProvider) ParseWebhook(header http.Header, payload []byte) (*payments.Notification, error) {
	args := m.Called(header, payload)
	n, _ := args.Get(0).(*payments.Notification)
	return n, args.Error(1)
}
