package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
// All env vars use the EVERPAY_ prefix for namespace isolation.
func (c *Config) applyEnvOverrides() {
	// Server config
	setIfEnv(&c.Server.Address, "EVERPAY_SERVER_ADDRESS")
	setIfEnv(&c.Server.AdminMetricsAPIKey, "EVERPAY_ADMIN_METRICS_API_KEY")
	if v := os.Getenv("EVERPAY_CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.CORSAllowedOrigins = splitAndTrim(v)
	}

	// Logging config
	setIfEnv(&c.Logging.Level, "EVERPAY_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "EVERPAY_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "EVERPAY_ENVIRONMENT")

	// Stripe config (the unprefixed names match the original deployment env)
	setIfEnv(&c.Stripe.SecretKey, "EVERPAY_STRIPE_SECRET_KEY", "STRIPE_SECRET_KEY")
	setIfEnv(&c.Stripe.WebhookSecret, "EVERPAY_STRIPE_WEBHOOK_SECRET", "STRIPE_WEBHOOK_SECRET")
	setIfEnv(&c.Stripe.Mode, "EVERPAY_STRIPE_MODE")

	// Checkout config
	setIfEnv(&c.Checkout.FrontendURL, "EVERPAY_FRONTEND_URL", "FRONTEND_URL")
	setIfEnv(&c.Checkout.Currency, "EVERPAY_CHECKOUT_CURRENCY")
	setIfEnv(&c.Checkout.BusinessEmail, "EVERPAY_BUSINESS_EMAIL")

	// Storage config
	setIfEnv(&c.Storage.Backend, "EVERPAY_STORAGE_BACKEND")
	setIfEnv(&c.Storage.PostgresURL, "EVERPAY_POSTGRES_URL", "DATABASE_URL")
	setIfEnv(&c.Storage.MongoDBURL, "EVERPAY_MONGODB_URL")
	setIfEnv(&c.Storage.MongoDBDatabase, "EVERPAY_MONGODB_DATABASE")
	setIntIfEnv(&c.Storage.PostgresPool.MaxOpenConns, "EVERPAY_POSTGRES_MAX_OPEN_CONNS")
	setIntIfEnv(&c.Storage.PostgresPool.MaxIdleConns, "EVERPAY_POSTGRES_MAX_IDLE_CONNS")

	// Auth config
	setIfEnv(&c.Auth.AdminEmail, "EVERPAY_ADMIN_EMAIL", "ADMIN_EMAIL")
	setIfEnv(&c.Auth.AdminPassword, "EVERPAY_ADMIN_PASSWORD", "ADMIN_PASSWORD")

	// Rate limit config
	setBoolIfEnv(&c.RateLimit.GlobalEnabled, "EVERPAY_RATE_LIMIT_GLOBAL_ENABLED")
	setIntIfEnv(&c.RateLimit.GlobalLimit, "EVERPAY_RATE_LIMIT_GLOBAL_LIMIT")
	setDurationIfEnv(&c.RateLimit.GlobalWindow, "EVERPAY_RATE_LIMIT_GLOBAL_WINDOW")
	setBoolIfEnv(&c.RateLimit.PerIPEnabled, "EVERPAY_RATE_LIMIT_PER_IP_ENABLED")
	setIntIfEnv(&c.RateLimit.PerIPLimit, "EVERPAY_RATE_LIMIT_PER_IP_LIMIT")
	setDurationIfEnv(&c.RateLimit.PerIPWindow, "EVERPAY_RATE_LIMIT_PER_IP_WINDOW")

	// Circuit breaker config
	setBoolIfEnv(&c.Breaker.Enabled, "EVERPAY_CIRCUIT_BREAKER_ENABLED")
}

// setIfEnv assigns the first non-empty environment variable from keys to dst.
func setIfEnv(dst *string, keys ...string) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			*dst = v
			return
		}
	}
}

func setBoolIfEnv(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setIntIfEnv(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setDurationIfEnv(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			dst.Duration = parsed
		}
	}
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
