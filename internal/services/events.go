package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/farellandr/eventive/internal/helpers"
	"github.com/farellandr/eventive/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxMaxPerOrder  = 50
)

type EventInput struct {
	Title       string             `json:"title" binding:"required,min=3,max=200"`
	Description string             `json:"description" binding:"required,min=10"`
	Category    string             `json:"category" binding:"required"`
	Location    string             `json:"location" binding:"required"`
	StartTime   time.Time          `json:"start_time" binding:"required"`
	EndTime     time.Time          `json:"end_time" binding:"required"`
	Capacity    *int               `json:"capacity" binding:"omitempty,min=1"`
	Price       decimal.Decimal    `json:"price"`
	Currency    string             `json:"currency" binding:"omitempty,len=3"`
	Status      models.EventStatus `json:"status"`
}

type EventUpdate struct {
	Title       *string          `json:"title" binding:"omitempty,min=3,max=200"`
	Description *string          `json:"description" binding:"omitempty,min=10"`
	Category    *string          `json:"category"`
	Location    *string          `json:"location"`
	StartTime   *time.Time       `json:"start_time"`
	EndTime     *time.Time       `json:"end_time"`
	Capacity    *int             `json:"capacity" binding:"omitempty,min=1"`
	Price       *decimal.Decimal `json:"price"`
	Currency    *string          `json:"currency" binding:"omitempty,len=3"`
}

type TicketTypeInput struct {
	Name        string          `json:"name" binding:"required,max=120"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency" binding:"omitempty,len=3"`
	Quantity    *int            `json:"quantity" binding:"omitempty,min=1"`
	MaxPerOrder int             `json:"max_per_order" binding:"omitempty,min=1,max=50"`
}

type EventFilter struct {
	Query    string `form:"q"`
	Category string `form:"category"`
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
}

type EventPage struct {
	Events []models.Event `json:"events"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Events   int64  `json:"events"`
}

type EventDetail struct {
	models.Event
	Availability *Availability `json:"availability"`
}

type EventService struct {
	db       *gorm.DB
	guard    *CapacityGuard
	currency string
}

func NewEventService(db *gorm.DB, guard *CapacityGuard, currency string) *EventService {
	return &EventService{db: db, guard: guard, currency: currency}
}

func (s *EventService) Create(ctx context.Context, actor Actor, in EventInput) (*models.Event, error) {
	if err := Authorize(actor, ActionCreateEvent); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = models.EventPublished
	}
	if !status.Valid() {
		return nil, ErrInvalidInput.WithMessage("Unknown event status.")
	}

	slug, err := helpers.GenerateSlug(in.Title)
	if err != nil {
		return nil, err
	}

	event := models.Event{
		Title:       strings.TrimSpace(in.Title),
		Slug:        slug,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Location:    strings.TrimSpace(in.Location),
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		Capacity:    in.Capacity,
		Price:       in.Price,
		Currency:    s.currencyOr(in.Currency),
		Status:      status,
		OrganizerID: actor.UserID,
	}
	if err := validateEvent(&event); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("create event: %w", err)
	}
	return &event, nil
}

func (s *EventService) Update(ctx context.Context, actor Actor, ref string, in EventUpdate) (*models.Event, error) {
	var event *models.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		event, err = loadEvent(tx, ref, true)
		if err != nil {
			return err
		}
		if err := Authorize(actor, ActionManageEvent, event.OrganizerID); err != nil {
			return err
		}

		if in.Title != nil {
			event.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			event.Description = strings.TrimSpace(*in.Description)
		}
		if in.Category != nil {
			event.Category = strings.TrimSpace(*in.Category)
		}
		if in.Location != nil {
			event.Location = strings.TrimSpace(*in.Location)
		}
		if in.StartTime != nil {
			event.StartTime = in.StartTime.UTC()
		}
		if in.EndTime != nil {
			event.EndTime = in.EndTime.UTC()
		}
		if in.Price != nil {
			event.Price = *in.Price
		}
		if in.Currency != nil {
			event.Currency = s.currencyOr(*in.Currency)
		}
		if in.Capacity != nil {
			held, err := countTickets(tx, event.ID, nil, models.SeatHoldingStatuses)
			if err != nil {
				return err
			}
			if int64(*in.Capacity) < held {
				return ErrInvalidInput.WithMessage(
					fmt.Sprintf("Capacity cannot be lower than the %d seats already held.", held))
			}
			event.Capacity = in.Capacity
		}
		if err := validateEvent(event); err != nil {
			return err
		}

		return tx.Save(event).Error
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) SetStatus(ctx context.Context, actor Actor, ref string, status models.EventStatus) (*models.Event, error) {
	if !status.Valid() {
		return nil, ErrInvalidInput.WithMessage("Unknown event status.")
	}

	event, err := loadEvent(s.db.WithContext(ctx), ref, false)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionManageEvent, event.OrganizerID); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(event).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("update event status: %w", err)
	}
	event.Status = status
	return event, nil
}

// Delete soft-deletes an event. Events that still have pending, confirmed or
// used tickets are kept.
func (s *EventService) Delete(ctx context.Context, actor Actor, ref string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := loadEvent(tx, ref, true)
		if err != nil {
			return err
		}
		if err := Authorize(actor, ActionManageEvent, event.OrganizerID); err != nil {
			return err
		}

		held, err := countTickets(tx, event.ID, nil, models.SeatHoldingStatuses)
		if err != nil {
			return err
		}
		if held > 0 {
			return ErrEventHasTickets
		}

		if err := tx.Delete(event).Error; err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		return nil
	})
}

// List returns published events, soonest first.
func (s *EventService) List(ctx context.Context, filter EventFilter) (*EventPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}

	query := s.db.WithContext(ctx).Model(&models.Event{}).Where("status = ?", models.EventPublished)
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	events := []models.Event{}
	err := query.Order("start_time ASC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	return &EventPage{Events: events, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Categories lists the categories in use by published events.
func (s *EventService) Categories(ctx context.Context) ([]CategoryCount, error) {
	categories := []CategoryCount{}
	err := s.db.WithContext(ctx).Model(&models.Event{}).
		Select("category, COUNT(*) AS events").
		Where("status = ?", models.EventPublished).
		Group("category").
		Order("category").
		Scan(&categories).Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Get looks an event up by slug or id. Unpublished events are only visible to
// their organizer and admins.
func (s *EventService) Get(ctx context.Context, actor Actor, ref string) (*EventDetail, error) {
	db := s.db.WithContext(ctx)

	var event models.Event
	err := eventQuery(db, ref).
		Preload("Organizer").
		Preload("TicketTypes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	if event.Status != models.EventPublished && Authorize(actor, ActionManageEvent, event.OrganizerID) != nil {
		return nil, ErrEventNotFound
	}

	availability, err := s.guard.Availability(ctx, &event)
	if err != nil {
		return nil, err
	}
	return &EventDetail{Event: event, Availability: availability}, nil
}

// SetBanner stores a new banner path and returns the one it replaced.
func (s *EventService) SetBanner(ctx context.Context, actor Actor, ref, path string) (*models.Event, string, error) {
	event, err := loadEvent(s.db.WithContext(ctx), ref, false)
	if err != nil {
		return nil, "", err
	}
	if err := Authorize(actor, ActionManageEvent, event.OrganizerID); err != nil {
		return nil, "", err
	}

	previous := event.BannerPath
	if err := s.db.WithContext(ctx).Model(event).Update("banner_path", path).Error; err != nil {
		return nil, "", fmt.Errorf("update banner: %w", err)
	}
	event.BannerPath = path
	return event, previous, nil
}

// AuthorizeManage checks that actor may change the event before any work,
// such as a file upload, is done on its behalf.
func (s *EventService) AuthorizeManage(ctx context.Context, actor Actor, ref string) error {
	event, err := loadEvent(s.db.WithContext(ctx), ref, false)
	if err != nil {
		return err
	}
	return Authorize(actor, ActionManageEvent, event.OrganizerID)
}

func (s *EventService) CreateTicketType(ctx context.Context, actor Actor, ref string, in TicketTypeInput) (*models.TicketType, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidInput.WithMessage("Ticket type name is required.")
	}
	if in.Price.IsNegative() {
		return nil, ErrInvalidInput.WithMessage("Price cannot be negative.")
	}
	if in.Quantity != nil && *in.Quantity < 1 {
		return nil, ErrInvalidInput.WithMessage("Quantity must be at least 1.")
	}
	if in.MaxPerOrder < 0 || in.MaxPerOrder > maxMaxPerOrder {
		return nil, ErrInvalidInput.WithMessage(fmt.Sprintf("Max per order must be between 1 and %d.", maxMaxPerOrder))
	}

	event, err := loadEvent(s.db.WithContext(ctx), ref, false)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionManageEvent, event.OrganizerID); err != nil {
		return nil, err
	}

	currency := in.Currency
	if currency == "" {
		currency = event.Currency
	}
	ticketType := models.TicketType{
		EventID:     event.ID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Currency:    strings.ToUpper(currency),
		Quantity:    in.Quantity,
		MaxPerOrder: in.MaxPerOrder,
	}
	if err := s.db.WithContext(ctx).Create(&ticketType).Error; err != nil {
		return nil, fmt.Errorf("create ticket type: %w", err)
	}
	return &ticketType, nil
}

func (s *EventService) ListTicketTypes(ctx context.Context, ref string) ([]models.TicketType, error) {
	event, err := loadEvent(s.db.WithContext(ctx), ref, false)
	if err != nil {
		return nil, err
	}

	ticketTypes := []models.TicketType{}
	if err := s.db.WithContext(ctx).Where("event_id = ?", event.ID).Order("created_at").Find(&ticketTypes).Error; err != nil {
		return nil, fmt.Errorf("list ticket types: %w", err)
	}
	return ticketTypes, nil
}

func (s *EventService) currencyOr(currency string) string {
	if currency = strings.ToUpper(strings.TrimSpace(currency)); currency != "" {
		return currency
	}
	return s.currency
}

func validateEvent(event *models.Event) error {
	switch {
	case len(event.Title) < 3:
		return ErrInvalidInput.WithMessage("Title must be at least 3 characters.")
	case len(event.Description) < 10:
		return ErrInvalidInput.WithMessage("Description must be at least 10 characters.")
	case event.Category == "":
		return ErrInvalidInput.WithMessage("Category is required.")
	case event.Location == "":
		return ErrInvalidInput.WithMessage("Location is required.")
	case event.StartTime.IsZero() || event.EndTime.IsZero():
		return ErrInvalidInput.WithMessage("Start and end time are required.")
	case !event.EndTime.After(event.StartTime):
		return ErrInvalidInput.WithMessage("End time must be after start time.")
	case event.Capacity != nil && *event.Capacity < 1:
		return ErrInvalidInput.WithMessage("Capacity must be at least 1.")
	case event.Price.IsNegative():
		return ErrInvalidInput.WithMessage("Price cannot be negative.")
	}
	return nil
}

func eventQuery(db *gorm.DB, ref string) *gorm.DB {
	if id, err := uuid.Parse(ref); err == nil {
		return db.Where("id = ?", id)
	}
	return db.Where("slug = ?", ref)
}

// loadEvent resolves an event by id or slug, optionally locking its row for
// the rest of the transaction.
func loadEvent(db *gorm.DB, ref string, lock bool) (*models.Event, error) {
	query := eventQuery(db, ref)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var event models.Event
	if err := query.First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	return &event, nil
}
