package services

import (
	"context"
	"testing"
	"time"

	"github.com/farellandr/eventive/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEventInput() EventInput {
	start := time.Now().Add(24 * time.Hour)
	return EventInput{
		Title:       "Gophercon Jakarta",
		Description: "Two days of Go talks and workshops.",
		Category:    "tech",
		Location:    "Jakarta Convention Center",
		StartTime:   start,
		EndTime:     start.Add(8 * time.Hour),
		Price:       decimal.Zero,
	}
}

func TestCreateEvent(t *testing.T) {
	f := newFixture(t)
	_, organizer := f.user(models.RoleOrganizer)

	event, err := f.events.Create(context.Background(), organizer, validEventInput())
	require.NoError(t, err)
	assert.Equal(t, models.EventPublished, event.Status)
	assert.Equal(t, "USD", event.Currency)
	assert.Regexp(t, `^gophercon-jakarta-[a-z0-9]{5}$`, event.Slug)
	assert.Equal(t, organizer.UserID, event.OrganizerID)
}

func TestCreateEventValidation(t *testing.T) {
	f := newFixture(t)
	_, organizer := f.user(models.RoleOrganizer)
	zero := 0

	tests := []struct {
		name   string
		mutate func(*EventInput)
	}{
		{"short title", func(in *EventInput) { in.Title = "Go" }},
		{"short description", func(in *EventInput) { in.Description = "Too short" }},
		{"missing category", func(in *EventInput) { in.Category = " " }},
		{"end before start", func(in *EventInput) { in.EndTime = in.StartTime.Add(-time.Hour) }},
		{"end equals start", func(in *EventInput) { in.EndTime = in.StartTime }},
		{"zero capacity", func(in *EventInput) { in.Capacity = &zero }},
		{"negative price", func(in *EventInput) { in.Price = decimal.NewFromInt(-1) }},
		{"unknown status", func(in *EventInput) { in.Status = "ARCHIVED" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validEventInput()
			tt.mutate(&in)
			_, err := f.events.Create(context.Background(), organizer, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestCreateEventRequiresOrganizer(t *testing.T) {
	f := newFixture(t)
	_, attendee := f.user(models.RoleAttendee)
	_, admin := f.user(models.RoleAdmin)

	_, err := f.events.Create(context.Background(), attendee, validEventInput())
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.events.Create(context.Background(), admin, validEventInput())
	assert.NoError(t, err)
}

func TestListEventsShowsPublishedOnly(t *testing.T) {
	f := newFixture(t)
	organizer, _ := f.user(models.RoleOrganizer)
	f.event(organizer, func(e *models.Event) { e.Title = "Rust Night"; e.Category = "tech" })
	f.event(organizer, func(e *models.Event) { e.Title = "Jazz Evening"; e.Category = "music" })
	f.event(organizer, func(e *models.Event) { e.Title = "Secret Draft"; e.Status = models.EventDraft })

	ctx := context.Background()

	page, err := f.events.List(ctx, EventFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = f.events.List(ctx, EventFilter{Category: "music"})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, "Jazz Evening", page.Events[0].Title)

	page, err = f.events.List(ctx, EventFilter{Query: "rust"})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, "Rust Night", page.Events[0].Title)

	page, err = f.events.List(ctx, EventFilter{Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page.Events, 1)
	assert.EqualValues(t, 2, page.Total)
}

func TestGetEventHidesDraftsFromOthers(t *testing.T) {
	f := newFixture(t)
	organizerUser, organizer := f.user(models.RoleOrganizer)
	_, attendee := f.user(models.RoleAttendee)
	draft := f.event(organizerUser, func(e *models.Event) { e.Status = models.EventDraft })

	_, err := f.events.Get(context.Background(), attendee, draft.Slug)
	assert.ErrorIs(t, err, ErrEventNotFound)

	detail, err := f.events.Get(context.Background(), organizer, draft.Slug)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, detail.ID)
	require.NotNil(t, detail.Organizer)
	assert.NotNil(t, detail.Availability)
}

func TestUpdateEvent(t *testing.T) {
	f := newFixture(t)
	organizerUser, organizer := f.user(models.RoleOrganizer)
	_, stranger := f.user(models.RoleOrganizer)
	event := f.event(organizerUser, capacity(5))
	for i := 0; i < 2; i++ {
		_, attendee := f.user(models.RoleAttendee)
		f.issue(attendee, event)
	}
	ctx := context.Background()

	title := "Go Meetup: Generics"
	updated, err := f.events.Update(ctx, organizer, event.Slug, EventUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	_, err = f.events.Update(ctx, stranger, event.Slug, EventUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)

	one := 1
	_, err = f.events.Update(ctx, organizer, event.Slug, EventUpdate{Capacity: &one})
	assert.ErrorIs(t, err, ErrInvalidInput)

	earlier := event.StartTime.Add(-time.Hour)
	_, err = f.events.Update(ctx, organizer, event.Slug, EventUpdate{EndTime: &earlier})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetEventStatus(t *testing.T) {
	f := newFixture(t)
	organizerUser, organizer := f.user(models.RoleOrganizer)
	event := f.event(organizerUser)

	updated, err := f.events.SetStatus(context.Background(), organizer, event.ID.String(), models.EventCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.EventCancelled, updated.Status)

	_, attendee := f.user(models.RoleAttendee)
	_, err = f.issuer.Issue(context.Background(), attendee, IssueRequest{EventRef: event.Slug})
	assert.ErrorIs(t, err, ErrEventNotAvailable)

	_, err = f.events.SetStatus(context.Background(), organizer, event.ID.String(), "ARCHIVED")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteEventWithTicketsIsRefused(t *testing.T) {
	f := newFixture(t)
	organizerUser, organizer := f.user(models.RoleOrganizer)
	event := f.event(organizerUser)
	empty := f.event(organizerUser)
	_, attendee := f.user(models.RoleAttendee)
	f.issue(attendee, event)
	ctx := context.Background()

	err := f.events.Delete(ctx, organizer, event.Slug)
	assert.ErrorIs(t, err, ErrEventHasTickets)

	require.NoError(t, f.events.Delete(ctx, organizer, empty.Slug))
	_, err = f.events.Get(ctx, organizer, empty.Slug)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestTicketTypes(t *testing.T) {
	f := newFixture(t)
	organizerUser, organizer := f.user(models.RoleOrganizer)
	_, attendee := f.user(models.RoleAttendee)
	event := f.event(organizerUser)
	ctx := context.Background()

	created, err := f.events.CreateTicketType(ctx, organizer, event.Slug, TicketTypeInput{
		Name:  "Early Bird",
		Price: decimal.RequireFromString("5.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMaxPerOrder, created.MaxPerOrder)
	assert.Equal(t, "USD", created.Currency)

	_, err = f.events.CreateTicketType(ctx, attendee, event.Slug, TicketTypeInput{Name: "Hack"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.events.CreateTicketType(ctx, organizer, event.Slug, TicketTypeInput{Name: "Bulk", MaxPerOrder: 51})
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := f.events.ListTicketTypes(ctx, event.Slug)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Early Bird", list[0].Name)
}

func TestCategories(t *testing.T) {
	f := newFixture(t)
	organizer, _ := f.user(models.RoleOrganizer)
	f.event(organizer, func(e *models.Event) { e.Category = "music" })
	f.event(organizer, func(e *models.Event) { e.Category = "music" })
	f.event(organizer, func(e *models.Event) { e.Category = "tech" })
	f.event(organizer, func(e *models.Event) { e.Category = "art"; e.Status = models.EventDraft })

	categories, err := f.events.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []CategoryCount{{"music", 2}, {"tech", 1}}, categories)
}
