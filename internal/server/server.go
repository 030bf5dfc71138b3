package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/farellandr/eventive/config"
	"github.com/farellandr/eventive/internal/handlers"
	"github.com/farellandr/eventive/internal/helpers"
	"github.com/farellandr/eventive/internal/middleware"
	"github.com/farellandr/eventive/internal/models"
	"github.com/farellandr/eventive/internal/monitoring"
	"github.com/farellandr/eventive/internal/notify"
	"github.com/farellandr/eventive/internal/payments"
	"github.com/farellandr/eventive/internal/ratelimit"
	"github.com/farellandr/eventive/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

// App is the assembled service: its HTTP handler plus the background work
// that runs next to it.
type App struct {
	Handler http.Handler
	Reaper  *services.Reaper
}

// Start connects to the database, serves HTTP on cfg.Port and blocks until
// ctx is cancelled, then drains in-flight requests.
func Start(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	app, err := NewApp(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go app.Reaper.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "environment", cfg.Environment, "payment_provider", cfg.PaymentProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// NewApp wires services, handlers and routes on top of db.
func NewApp(ctx context.Context, cfg *config.Config, db *gorm.DB, log *slog.Logger) (*App, error) {
	provider := newPaymentProvider(cfg)
	var paidMethod models.PaymentMethod
	if provider != nil {
		paidMethod = provider.Method()
	}

	limiter, err := newLimiter(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	notifier := newNotifier(cfg)

	signer := helpers.NewTicketSigner(cfg.TicketSigningSecret)
	guard := services.NewCapacityGuard(db)
	users := services.NewUserService(db, cfg.JWTSecret)

	upload := helpers.DefaultImageUploadConfig
	upload.UploadBasePath = cfg.UploadDir

	h := &handlers.Handler{
		Users:    users,
		Events:   services.NewEventService(db, guard, cfg.Currency),
		Issuer:   services.NewIssuer(db, guard, paidMethod, notifier, log),
		Payments: services.NewReconciler(db, provider, notifier, log),
		CheckIns: services.NewCheckInService(db, signer, notifier, log),
		Tickets:  services.NewTicketService(db, signer),
		Upload:   upload,
		Log:      log,
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.SecurityHeaders(), monitoring.Middleware())
	setupRoutes(r, h, users, limiter, cfg, log)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})

	return &App{
		Handler: c.Handler(r),
		Reaper:  services.NewReaper(db, cfg.PaymentTimeout, cfg.ReaperInterval, log),
	}, nil
}

func setupRoutes(r *gin.Engine, h *handlers.Handler, users middleware.TokenParser, limiter ratelimit.Limiter, cfg *config.Config, log *slog.Logger) {
	r.GET("/health", handlers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static("/uploads", cfg.UploadDir)

	auth := middleware.JWTAuthMiddleware(users)
	organizers := middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin)

	v1 := r.Group("/v1")

	authGroup := v1.Group("/auth", middleware.RateLimit(limiter, "auth", log))
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}

	v1.GET("/categories", h.ListCategories)

	events := v1.Group("/events")
	{
		events.GET("", h.ListEvents)
		events.GET("/:ref", middleware.OptionalAuth(users), h.GetEvent)
		events.GET("/:ref/ticket-types", h.ListTicketTypes)

		events.POST("", auth, organizers, h.CreateEvent)
		events.PUT("/:ref", auth, organizers, h.UpdateEvent)
		events.PATCH("/:ref/status", auth, organizers, h.UpdateEventStatus)
		events.DELETE("/:ref", auth, organizers, h.DeleteEvent)
		events.PUT("/:ref/banner", auth, organizers, h.UploadBanner)
		events.POST("/:ref/ticket-types", auth, organizers, h.CreateTicketType)
		events.GET("/:ref/tickets", auth, organizers, h.EventTickets)

		purchase := middleware.RateLimit(limiter, "purchase", log)
		events.POST("/:ref/register", auth, purchase, h.RegisterForEvent)
		events.POST("/:ref/tickets", auth, purchase, h.PurchaseTickets)
	}

	me := v1.Group("/me", auth)
	{
		me.GET("", h.GetProfile)
		me.GET("/tickets", h.MyTickets)
	}

	tickets := v1.Group("/tickets", auth)
	{
		tickets.GET("/:id", h.GetTicket)
		tickets.GET("/:id/qr", h.TicketQR)
	}

	checkin := v1.Group("/checkin", auth, organizers)
	{
		checkin.POST("/:eventId/scan", middleware.RateLimit(limiter, "scan", log), h.ScanTicket)
		checkin.GET("/:eventId", h.ListCheckIns)
		checkin.GET("/:eventId/stats", h.CheckInStats)
	}

	paymentRoutes := v1.Group("/payments")
	{
		paymentRoutes.POST("/intent", auth, h.CreatePaymentIntent)
		paymentRoutes.POST("/confirm", auth, h.ConfirmPayment)
		paymentRoutes.POST("/refund/:orderId", auth, h.RefundOrder)
		paymentRoutes.POST("/webhook/stripe", h.PaymentWebhook("stripe"))
		paymentRoutes.POST("/webhook/xendit", h.PaymentWebhook("xendit"))
	}
}

func newPaymentProvider(cfg *config.Config) payments.Provider {
	switch cfg.PaymentProvider {
	case "stripe":
		return payments.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	case "xendit":
		sealer := helpers.NewExternalIDSealer(cfg.TicketSigningSecret)
		return payments.NewXendit(cfg.XenditSecretKey, cfg.XenditCallbackToken, sealer)
	default:
		return nil
	}
}

func newLimiter(ctx context.Context, cfg *config.Config, log *slog.Logger) (ratelimit.Limiter, error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewLocalLimiter(cfg.RateLimitPerMinute), nil
	}

	client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("using redis rate limiter")
	return ratelimit.NewRedisLimiter(client, cfg.RateLimitPerMinute, time.Minute), nil
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.PubNubPublishKey == "" || cfg.PubNubSubscribeKey == "" {
		return notify.Noop{}
	}
	return notify.NewPubNub(notify.PubNubConfig{
		PublishKey:   cfg.PubNubPublishKey,
		SubscribeKey: cfg.PubNubSubscribeKey,
		SecretKey:    cfg.PubNubSecretKey,
		UserID:       "eventive-server",
	})
}
