package httpserver

import (
	"fmt"
	"io"
	"net/http"
	"time"

	apierrors "github.com/everpay/server/internal/errors"
	"github.com/everpay/server/internal/logger"
	"github.com/everpay/server/pkg/responders"
)

// handleWebhook processes incoming Stripe webhook events. The raw body is
// read before any parsing because signature verification covers the exact
// bytes Stripe sent.
func (s *handlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	start := time.Now()

	signature := r.Header.Get("Stripe-Signature")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error().Err(err).Msg("stripe.webhook.read_body_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, fmt.Sprintf("read body: %v", err))
		return
	}

	event, err := s.stripe.ParseWebhook(r.Context(), body, signature)
	if err != nil {
		log.Warn().Err(err).Msg("stripe.webhook.invalid_signature")
		s.metrics.ObserveWebhook("unknown", "invalid_signature", time.Since(start))
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidSignature, err.Error())
		return
	}

	log.Info().Str("event_type", event.Type).Msg("stripe.webhook.received")

	if event.Type != "checkout.session.completed" {
		s.metrics.ObserveWebhook(event.Type, "ignored", time.Since(start))
		responders.JSON(w, http.StatusOK, map[string]any{
			"received": true,
			"type":     event.Type,
		})
		return
	}

	payment, err := s.stripe.HandleCompletion(r.Context(), event)
	if err != nil {
		// A 5xx makes Stripe redeliver; the idempotent store absorbs the
		// duplicate once persistence recovers.
		log.Error().
			Err(err).
			Str("session_id", event.SessionID).
			Msg("stripe.webhook.record_failed")
		s.metrics.ObserveWebhook(event.Type, "failed", time.Since(start))
		apierrors.WriteSimpleError(w, apierrors.ErrCodeDatabaseError, "failed to record payment")
		return
	}

	log.Info().
		Str("session_id", payment.ID).
		Str("creator", payment.Creator).
		Int64("amount", payment.Amount).
		Str("email", logger.RedactEmail(payment.Email)).
		Msg("stripe.webhook.payment_recorded")
	s.metrics.ObserveWebhook(event.Type, "success", time.Since(start))

	responders.JSON(w, http.StatusOK, map[string]any{
		"received": true,
		"type":     event.Type,
	})
}
