package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PAYMENT_PROVIDER", "")
	t.Setenv("TICKET_SIGNING_SECRET", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("PAYMENT_TIMEOUT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "none", cfg.PaymentProvider)
	assert.Equal(t, "secret", cfg.TicketSigningSecret)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.PaymentTimeout)
}

func TestLoadConfigParsesValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PAYMENT_PROVIDER", "Stripe")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "15")
	t.Setenv("PAYMENT_TIMEOUT", "10m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CURRENCY", "idr")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "stripe", cfg.PaymentProvider)
	assert.Equal(t, 15, cfg.RateLimitPerMinute)
	assert.Equal(t, 10*time.Minute, cfg.PaymentTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "IDR", cfg.Currency)
}

func TestLoadConfigRejectsIncompleteProvider(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}},
		{"stripe without keys", map[string]string{"JWT_SECRET": "s", "PAYMENT_PROVIDER": "stripe", "STRIPE_SECRET_KEY": "", "STRIPE_WEBHOOK_SECRET": ""}},
		{"xendit without token", map[string]string{"JWT_SECRET": "s", "PAYMENT_PROVIDER": "xendit", "XENDIT_SECRET_KEY": "k", "XENDIT_CALLBACK_TOKEN": ""}},
		{"unknown provider", map[string]string{"JWT_SECRET": "s", "PAYMENT_PROVIDER": "paypal"}},
		{"zero reaper interval", map[string]string{"JWT_SECRET": "s", "PAYMENT_PROVIDER": "none", "REAPER_INTERVAL": "0s"}},
		{"negative reaper interval", map[string]string{"JWT_SECRET": "s", "PAYMENT_PROVIDER": "none", "REAPER_INTERVAL": "-1m"}},
		{"negative payment timeout", map[string]string{"JWT_SECRET": "s", "PAYMENT_PROVIDER": "none", "PAYMENT_TIMEOUT": "-5m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
