package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketIssuance = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventive_ticket_issuance_total",
			Help: "Ticket issuance attempts by outcome",
		},
		[]string{"outcome"},
	)

	checkIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventive_checkins_total",
			Help: "Check-in scans by outcome",
		},
		[]string{"outcome"},
	)

	paymentNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventive_payment_notifications_total",
			Help: "Payment provider notifications by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	expiredTickets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventive_expired_pending_tickets_total",
			Help: "Pending tickets cancelled after the payment timeout",
		},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventive_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func TrackIssuance(outcome string) {
	ticketIssuance.WithLabelValues(outcome).Inc()
}

func TrackCheckIn(outcome string) {
	checkIns.WithLabelValues(outcome).Inc()
}

func TrackPaymentNotification(provider, outcome string) {
	paymentNotifications.WithLabelValues(provider, outcome).Inc()
}

func TrackExpiredTickets(n int64) {
	expiredTickets.Add(float64(n))
}

// Middleware observes request latency keyed by the matched route template, so
// ids in paths do not blow up label cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
