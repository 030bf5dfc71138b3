package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret           string
	TicketSigningSecret string

	PaymentProvider     string
	StripeSecretKey     string
	StripeWebhookSecret string
	XenditSecretKey     string
	XenditCallbackToken string
	Currency            string

	RedisURL           string
	RateLimitPerMinute int

	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	PaymentTimeout time.Duration
	ReaperInterval time.Duration

	CORSAllowedOrigins []string
	UploadDir          string

	AdminEmail    string
	AdminPassword string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		JWTSecret:           os.Getenv("JWT_SECRET"),
		TicketSigningSecret: os.Getenv("TICKET_SIGNING_SECRET"),

		PaymentProvider:     strings.ToLower(getEnv("PAYMENT_PROVIDER", "none")),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		XenditSecretKey:     os.Getenv("XENDIT_SECRET_KEY"),
		XenditCallbackToken: os.Getenv("XENDIT_CALLBACK_TOKEN"),
		Currency:            strings.ToUpper(getEnv("CURRENCY", "USD")),

		RedisURL:           os.Getenv("REDIS_URL"),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),

		PubNubPublishKey:   os.Getenv("PUBNUB_PUBLISH_KEY"),
		PubNubSubscribeKey: os.Getenv("PUBNUB_SUBSCRIBE_KEY"),
		PubNubSecretKey:    os.Getenv("PUBNUB_SECRET_KEY"),

		PaymentTimeout: getEnvAsDuration("PAYMENT_TIMEOUT", "30m"),
		ReaperInterval: getEnvAsDuration("REAPER_INTERVAL", "1m"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", "*"),
		UploadDir:          getEnv("UPLOAD_DIR", "./uploads/"),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PaymentTimeout <= 0 {
		return nil, fmt.Errorf("PAYMENT_TIMEOUT must be a positive duration")
	}
	if cfg.ReaperInterval <= 0 {
		return nil, fmt.Errorf("REAPER_INTERVAL must be a positive duration")
	}
	if cfg.TicketSigningSecret == "" {
		cfg.TicketSigningSecret = cfg.JWTSecret
	}

	switch cfg.PaymentProvider {
	case "none":
	case "stripe":
		if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required for the stripe provider")
		}
	case "xendit":
		if cfg.XenditSecretKey == "" || cfg.XenditCallbackToken == "" {
			return nil, fmt.Errorf("XENDIT_SECRET_KEY and XENDIT_CALLBACK_TOKEN are required for the xendit provider")
		}
	default:
		return nil, fmt.Errorf("unknown PAYMENT_PROVIDER %q", cfg.PaymentProvider)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if duration, err := time.ParseDuration(getEnv(key, defaultValue)); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
