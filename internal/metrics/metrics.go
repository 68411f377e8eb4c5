package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the EverPay backend.
type Metrics struct {
	// Checkout session metrics
	CheckoutSessionsTotal   *prometheus.CounterVec
	CheckoutSessionDuration *prometheus.HistogramVec

	// Webhook metrics
	WebhooksTotal   *prometheus.CounterVec
	WebhookDuration *prometheus.HistogramVec

	// Recorded payment metrics
	PaymentsRecordedTotal *prometheus.CounterVec
	PaymentAmountTotal    *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		CheckoutSessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "everpay_checkout_sessions_total",
				Help: "Total number of hosted checkout session creation attempts",
			},
			[]string{"source", "outcome"},
		),
		CheckoutSessionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "everpay_checkout_session_duration_seconds",
				Help:    "Time taken to create a hosted checkout session",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"source"},
		),
		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "everpay_webhooks_total",
				Help: "Total number of webhook deliveries by event type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
		WebhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "everpay_webhook_duration_seconds",
				Help:    "Time taken to process a webhook delivery",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"outcome"},
		),
		PaymentsRecordedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "everpay_payments_recorded_total",
				Help: "Total number of payments persisted from completed checkouts",
			},
			[]string{"directed"},
		),
		PaymentAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "everpay_payment_amount_total",
				Help: "Total recorded payment amount in minor currency units",
			},
			[]string{"currency"},
		),
		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "everpay_rate_limit_hits_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"limiter"},
		),
	}
}

// ObserveCheckoutSession records a session creation attempt.
func (m *Metrics) ObserveCheckoutSession(source string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failed"
	}
	m.CheckoutSessionsTotal.WithLabelValues(source, outcome).Inc()
	m.CheckoutSessionDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveWebhook records a webhook delivery.
func (m *Metrics) ObserveWebhook(eventType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(eventType, outcome).Inc()
	m.WebhookDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObservePaymentRecorded records a persisted payment.
func (m *Metrics) ObservePaymentRecorded(creator string, amount int64, currency string) {
	if m == nil {
		return
	}
	directed := "false"
	if creator != "" {
		directed = "true"
	}
	m.PaymentsRecordedTotal.WithLabelValues(directed).Inc()
	m.PaymentAmountTotal.WithLabelValues(currency).Add(float64(amount))
}

// ObserveRateLimitHit records a rejected request.
func (m *Metrics) ObserveRateLimitHit(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitHitsTotal.WithLabelValues(limiter).Inc()
}
