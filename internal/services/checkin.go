package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/farellandr/eventive/internal/helpers"
	"github.com/farellandr/eventive/internal/models"
	"github.com/farellandr/eventive/internal/monitoring"
	"github.com/farellandr/eventive/internal/notify"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errLostCheckInRace = errors.New("ticket checked in concurrently")

type ScanRequest struct {
	TicketNumber string `json:"ticket_number" binding:"required"`
	Location     string `json:"location" binding:"omitempty,max=200"`
	Notes        string `json:"notes" binding:"omitempty,max=500"`
}

// ScanResult is returned for successful scans and, together with
// ErrAlreadyCheckedIn, for repeated ones.
type ScanResult struct {
	CheckIn *models.CheckIn `json:"check_in"`
	Ticket  *models.Ticket  `json:"ticket"`
}

type CheckInStats struct {
	EventID        uuid.UUID `json:"event_id"`
	TotalTickets   int64     `json:"total_tickets"`
	CheckedIn      int64     `json:"checked_in"`
	PendingCheckIn int64     `json:"pending_check_in"`
	CheckInRate    float64   `json:"check_in_rate"`
}

type CheckInService struct {
	db       *gorm.DB
	signer   *helpers.TicketSigner
	notifier notify.Notifier
	log      *slog.Logger

	// findExisting is the in-transaction lookup of a prior check-in.
	findExisting func(db *gorm.DB, ticketID, eventID uuid.UUID) (*models.CheckIn, error)
}

func NewCheckInService(db *gorm.DB, signer *helpers.TicketSigner, notifier notify.Notifier, log *slog.Logger) *CheckInService {
	return &CheckInService{db: db, signer: signer, notifier: notifier, log: log, findExisting: findCheckIn}
}

func (s *CheckInService) Scan(ctx context.Context, actor Actor, eventID uuid.UUID, req ScanRequest) (*ScanResult, error) {
	result, err := s.scan(ctx, actor, eventID, req)
	switch {
	case err == nil:
		monitoring.TrackCheckIn("checked_in")
		notify.Async(s.notifier, s.log, notify.EventChannel(eventID.String()), map[string]any{
			"type":          "ticket.checked_in",
			"ticket_code":   result.Ticket.Code,
			"checked_in_at": result.CheckIn.CheckedInAt,
		})
	default:
		monitoring.TrackCheckIn(outcomeLabel(err))
	}
	return result, err
}

func (s *CheckInService) scan(ctx context.Context, actor Actor, eventID uuid.UUID, req ScanRequest) (*ScanResult, error) {
	code, err := s.signer.Resolve(req.TicketNumber)
	if err != nil {
		return nil, ErrInvalidQRSignature
	}
	if code == "" {
		return nil, ErrInvalidInput.WithMessage("Ticket number is required.")
	}

	if err := s.authorize(ctx, actor, eventID); err != nil {
		return nil, err
	}

	var (
		result   *ScanResult
		ticketID uuid.UUID
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ticket models.Ticket
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).
			First(&ticket).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTicketNotFound
			}
			return fmt.Errorf("load ticket: %w", err)
		}
		ticketID = ticket.ID

		if ticket.EventID != eventID {
			return ErrWrongEvent
		}

		switch ticket.Status {
		case models.TicketPending:
			return ErrTicketPending
		case models.TicketCancelled:
			return ErrTicketCancelled
		case models.TicketRefunded:
			return ErrTicketRefunded
		}

		existing, err := s.findExisting(tx, ticket.ID, eventID)
		if err != nil {
			return err
		}
		if existing != nil || ticket.Status == models.TicketUsed {
			result = &ScanResult{CheckIn: existing, Ticket: &ticket}
			return ErrAlreadyCheckedIn
		}

		checkIn := models.CheckIn{
			TicketID:   ticket.ID,
			EventID:    eventID,
			OperatorID: &actor.UserID,
			Location:   strings.TrimSpace(req.Location),
			Notes:      strings.TrimSpace(req.Notes),
		}
		if err := tx.Create(&checkIn).Error; err != nil {
			if isDuplicate(err) {
				return errLostCheckInRace
			}
			return fmt.Errorf("create check-in: %w", err)
		}

		res := tx.Model(&models.Ticket{}).
			Where("id = ? AND status = ?", ticket.ID, models.TicketConfirmed).
			Update("status", models.TicketUsed)
		if res.Error != nil {
			return fmt.Errorf("mark ticket used: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errLostCheckInRace
		}

		ticket.Status = models.TicketUsed
		result = &ScanResult{CheckIn: &checkIn, Ticket: &ticket}
		return nil
	})

	if errors.Is(err, errLostCheckInRace) {
		return s.reportExisting(ctx, ticketID, eventID)
	}
	return result, err
}

// reportExisting loads the check-in that won a concurrent scan.
func (s *CheckInService) reportExisting(ctx context.Context, ticketID, eventID uuid.UUID) (*ScanResult, error) {
	db := s.db.WithContext(ctx)

	var ticket models.Ticket
	if err := db.Where("id = ?", ticketID).First(&ticket).Error; err != nil {
		return nil, fmt.Errorf("reload ticket: %w", err)
	}
	existing, err := findCheckIn(db, ticketID, eventID)
	if err != nil {
		return nil, err
	}
	return &ScanResult{CheckIn: existing, Ticket: &ticket}, ErrAlreadyCheckedIn
}

func (s *CheckInService) List(ctx context.Context, actor Actor, eventID uuid.UUID) ([]models.CheckIn, error) {
	if err := s.authorize(ctx, actor, eventID); err != nil {
		return nil, err
	}

	checkIns := []models.CheckIn{}
	err := s.db.WithContext(ctx).
		Preload("Ticket").
		Where("event_id = ?", eventID).
		Order("checked_in_at DESC").
		Find(&checkIns).Error
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}
	return checkIns, nil
}

func (s *CheckInService) Stats(ctx context.Context, actor Actor, eventID uuid.UUID) (*CheckInStats, error) {
	if err := s.authorize(ctx, actor, eventID); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	total, err := countTickets(db, eventID, nil, []models.TicketStatus{models.TicketConfirmed, models.TicketUsed})
	if err != nil {
		return nil, err
	}

	var checkedIn int64
	if err := db.Model(&models.CheckIn{}).Where("event_id = ?", eventID).Count(&checkedIn).Error; err != nil {
		return nil, fmt.Errorf("count check-ins: %w", err)
	}

	stats := &CheckInStats{
		EventID:        eventID,
		TotalTickets:   total,
		CheckedIn:      checkedIn,
		PendingCheckIn: max(total-checkedIn, 0),
	}
	if total > 0 {
		stats.CheckInRate = math.Round(float64(checkedIn)/float64(total)*10000) / 100
	}
	return stats, nil
}

func (s *CheckInService) authorize(ctx context.Context, actor Actor, eventID uuid.UUID) error {
	if !actor.Authenticated() {
		return ErrUnauthorized
	}
	event, err := loadEvent(s.db.WithContext(ctx), eventID.String(), false)
	if err != nil {
		return err
	}
	return Authorize(actor, ActionCheckIn, event.OrganizerID)
}

func findCheckIn(db *gorm.DB, ticketID, eventID uuid.UUID) (*models.CheckIn, error) {
	var checkIns []models.CheckIn
	err := db.Where("ticket_id = ? AND event_id = ?", ticketID, eventID).Limit(1).Find(&checkIns).Error
	if err != nil {
		return nil, fmt.Errorf("find check-in: %w", err)
	}
	if len(checkIns) == 0 {
		return nil, nil
	}
	return &checkIns[0], nil
}
