package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/everpay/server/internal/circuitbreaker"
	"github.com/everpay/server/internal/config"
	"github.com/everpay/server/internal/metrics"
	"github.com/everpay/server/internal/payments"
)

// Client wraps stripe-go operations used by the server.
type Client struct {
	cfg      config.StripeConfig
	checkout config.CheckoutConfig
	store    payments.Repository
	breaker  *circuitbreaker.Breaker
	metrics  *metrics.Metrics
}

// NewClient sets up stripe-go with the provided credentials.
func NewClient(cfg config.StripeConfig, checkoutCfg config.CheckoutConfig, store payments.Repository, breaker *circuitbreaker.Breaker, metricsCollector *metrics.Metrics) *Client {
	stripeapi.Key = cfg.SecretKey
	return &Client{
		cfg:      cfg,
		checkout: checkoutCfg,
		store:    store,
		breaker:  breaker,
		metrics:  metricsCollector,
	}
}

// CreateSessionRequest captures everything a hosted checkout session needs.
// Amount is in minor currency units and must be positive.
type CreateSessionRequest struct {
	Amount         int64
	Creator        string // empty for undirected/business payments
	SupporterName  string
	GiftMessage    string
	Anonymous      bool
	CustomerEmail  string
	Source         string // origin of the request, used for metrics labels
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// CreateCheckoutSession builds a Stripe Checkout session. The payment
// metadata is attached to both the session and the payment intent so the
// webhook can recover it from whichever object Stripe delivers populated.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CreateSessionRequest) (*stripeapi.CheckoutSession, error) {
	if req.Amount <= 0 {
		return nil, errors.New("stripe: amount must be positive")
	}

	start := time.Now()
	meta := buildSessionMetadata(req)

	params := &stripeapi.CheckoutSessionParams{
		Mode:               stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripeapi.StringSlice([]string{"card"}),
		SuccessURL:         stripeapi.String(firstNonEmpty(req.SuccessURL, c.successURL(req.Creator))),
		CancelURL:          stripeapi.String(firstNonEmpty(req.CancelURL, c.cancelURL(req.Creator))),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				Quantity: stripeapi.Int64(1),
				PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
					Currency: stripeapi.String(c.checkout.Currency),
					ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripeapi.String(lineItemName(req.Creator)),
					},
					UnitAmount: stripeapi.Int64(req.Amount),
				},
			},
		},
	}
	params.Metadata = meta
	params.PaymentIntentData = &stripeapi.CheckoutSessionPaymentIntentDataParams{
		Metadata: meta,
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripeapi.String(req.CustomerEmail)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return session.New(params)
	})
	c.metrics.ObserveCheckoutSession(firstNonEmpty(req.Source, "unknown"), err == nil, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return result.(*stripeapi.CheckoutSession), nil
}

func (c *Client) successURL(creator string) string {
	if creator != "" {
		return fmt.Sprintf("%s/%s?payment=success", strings.TrimRight(c.checkout.FrontendURL, "/"), creator)
	}
	return strings.TrimRight(c.checkout.FrontendURL, "/") + "/?payment=success"
}

func (c *Client) cancelURL(creator string) string {
	if creator != "" {
		return fmt.Sprintf("%s/%s?payment=cancelled", strings.TrimRight(c.checkout.FrontendURL, "/"), creator)
	}
	return strings.TrimRight(c.checkout.FrontendURL, "/") + "/?payment=cancelled"
}

func lineItemName(creator string) string {
	if creator != "" {
		return fmt.Sprintf("Support %s", creator)
	}
	return "EverPay payment"
}

// WebhookEvent wraps the subset of event types we care about.
type WebhookEvent struct {
	Type          string
	SessionID     string
	AmountTotal   int64
	Currency      string
	CustomerEmail string
	PaymentStatus string
	Metadata      map[string]string
}

// ParseWebhook validates the event signature against the raw request body
// and normalises the payload. Unknown event types come back with only Type
// set so callers can acknowledge them without acting.
func (c *Client) ParseWebhook(ctx context.Context, payload []byte, signature string) (WebhookEvent, error) {
	if c.cfg.WebhookSecret == "" {
		return WebhookEvent{}, errors.New("stripe: webhook secret not configured")
	}
	event, err := webhook.ConstructEvent(payload, signature, c.cfg.WebhookSecret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe: construct event: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var checkout stripeapi.CheckoutSession
		if err := jsonExtract(event.Data.Raw, &checkout); err != nil {
			return WebhookEvent{}, err
		}
		if checkout.ID == "" {
			return WebhookEvent{}, errors.New("stripe: completed session missing id")
		}
		return WebhookEvent{
			Type:          event.Type,
			SessionID:     checkout.ID,
			AmountTotal:   checkout.AmountTotal,
			Currency:      string(checkout.Currency),
			CustomerEmail: customerEmail(&checkout),
			PaymentStatus: string(checkout.PaymentStatus),
			Metadata:      collectSessionMetadata(&checkout),
		}, nil
	default:
		return WebhookEvent{Type: event.Type}, nil
	}
}

// HandleCompletion persists a completed checkout as a payment record.
// The session ID is the payment ID, so a redelivered webhook replaces the
// existing row instead of duplicating it. A storage error propagates so the
// HTTP layer returns 5xx and Stripe retries the delivery.
func (c *Client) HandleCompletion(ctx context.Context, event WebhookEvent) (payments.Payment, error) {
	if event.SessionID == "" {
		return payments.Payment{}, errors.New("stripe: completion missing session id")
	}

	p := payments.Payment{
		ID:          event.SessionID,
		Amount:      event.AmountTotal,
		Email:       event.CustomerEmail,
		Creator:     event.Metadata[metaCreator],
		Status:      firstNonEmpty(event.PaymentStatus, "succeeded"),
		CreatedAt:   time.Now().UTC(),
		GiftName:    event.Metadata[metaGiftName],
		GiftMessage: event.Metadata[metaGiftMessage],
		Anonymous:   parseAnonymous(event.Metadata[metaAnonymous]),
	}

	if err := c.store.Store(ctx, p); err != nil {
		return payments.Payment{}, fmt.Errorf("stripe: record payment: %w", err)
	}
	c.metrics.ObservePaymentRecorded(p.Creator, p.Amount, event.Currency)
	return p, nil
}

func customerEmail(s *stripeapi.CheckoutSession) string {
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		return s.CustomerDetails.Email
	}
	return s.CustomerEmail
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func jsonExtract(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("stripe: webhook payload empty")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("stripe: decode webhook payload: %w", err)
	}
	return nil
}
