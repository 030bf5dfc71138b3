package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/farellandr/eventive/internal/models"
	"github.com/farellandr/eventive/internal/monitoring"
	"gorm.io/gorm"
)

// Reaper cancels tickets whose payment was never completed so their seats go
// back on sale.
type Reaper struct {
	db       *gorm.DB
	timeout  time.Duration
	interval time.Duration
	log      *slog.Logger
}

func NewReaper(db *gorm.DB, timeout, interval time.Duration, log *slog.Logger) *Reaper {
	return &Reaper{db: db, timeout: timeout, interval: interval, log: log}
}

// Sweep cancels pending tickets created before now minus the payment timeout.
// Orders with a payment already started at the provider are left to the
// provider's failed or expired notification, so a late success still confirms
// them.
func (r *Reaper) Sweep(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("status = ? AND created_at < ?", models.TicketPending, now.Add(-r.timeout)).
		Where("payment_id IS NULL OR payment_id = ''").
		Updates(map[string]any{
			"status":         models.TicketCancelled,
			"payment_status": models.PaymentFailed,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("expire pending tickets: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			expired, err := r.Sweep(ctx, now)
			if err != nil {
				r.log.Error("pending ticket sweep failed", "error", err)
				continue
			}
			if expired > 0 {
				monitoring.TrackExpiredTickets(expired)
				r.log.Info("expired pending tickets", "count", expired)
			}
		}
	}
}
