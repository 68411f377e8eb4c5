package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/everpay/server/internal/config"
	"github.com/everpay/server/internal/metrics"
)

// rateLimitResponse is the JSON body returned with 429 responses.
type rateLimitResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// Defaults applied when the config leaves a limiter enabled but unset.
const (
	defaultGlobalLimit = 1000
	defaultPerIPLimit  = 120
	defaultWindow      = time.Minute
)

// GlobalLimiter caps total request throughput across all clients.
func GlobalLimiter(cfg config.RateLimitConfig, metricsCollector *metrics.Metrics) func(http.Handler) http.Handler {
	if !cfg.GlobalEnabled {
		return passthrough
	}

	limit, window := withDefaults(cfg.GlobalLimit, cfg.GlobalWindow.Duration, defaultGlobalLimit)
	return httprate.Limit(
		limit,
		window,
		httprate.WithLimitHandler(limitHandler("global", window, metricsCollector)),
	)
}

// IPLimiter caps request throughput per client IP.
func IPLimiter(cfg config.RateLimitConfig, metricsCollector *metrics.Metrics) func(http.Handler) http.Handler {
	if !cfg.PerIPEnabled {
		return passthrough
	}

	limit, window := withDefaults(cfg.PerIPLimit, cfg.PerIPWindow.Duration, defaultPerIPLimit)
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyByIP(),
		httprate.WithLimitHandler(limitHandler("per_ip", window, metricsCollector)),
	)
}

func passthrough(next http.Handler) http.Handler {
	return next
}

func withDefaults(limit int, window time.Duration, fallbackLimit int) (int, time.Duration) {
	if limit <= 0 {
		limit = fallbackLimit
	}
	if window <= 0 {
		window = defaultWindow
	}
	return limit, window
}

func limitHandler(limiter string, window time.Duration, metricsCollector *metrics.Metrics) func(http.ResponseWriter, *http.Request) {
	windowSeconds := int(window.Seconds())
	message := "Rate limit exceeded. Please try again later."
	if limiter == "per_ip" {
		message = "IP rate limit exceeded. Please try again later."
	}

	return func(w http.ResponseWriter, r *http.Request) {
		metricsCollector.ObserveRateLimitHit(limiter)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", fmt.Sprintf("%d", windowSeconds))
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(rateLimitResponse{
			Error:             "rate_limit_exceeded",
			Message:           message,
			RetryAfterSeconds: windowSeconds,
		})
	}
}
