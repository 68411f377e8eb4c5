package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/everpay/server/internal/errors"
	"github.com/everpay/server/internal/idempotency"
	"github.com/everpay/server/internal/logger"
	"github.com/everpay/server/internal/profiles"
	stripesvc "github.com/everpay/server/internal/stripe"
	"github.com/everpay/server/pkg/responders"
)

type checkoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// parseAmount parses an integer minor-unit amount and requires it positive.
func parseAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("amount is required")
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("amount must be an integer number of pence")
	}
	if amount <= 0 {
		return 0, errors.New("amount must be positive")
	}
	return amount, nil
}

// payByBank creates a dashboard pay-by-bank checkout session.
// GET /pay?amount=&creator=
func (s *handlers) payByBank(w http.ResponseWriter, r *http.Request) {
	s.createQuerySession(w, r, "dashboard_bank")
}

// payByCard creates a dashboard card checkout session.
// GET /checkout?amount=
func (s *handlers) payByCard(w http.ResponseWriter, r *http.Request) {
	s.createQuerySession(w, r, "dashboard_card")
}

// payByLink creates a checkout session and redirects straight to the hosted
// page. Used by NFC tags and printed QR links where the client is a browser.
// GET /link?amount=
func (s *handlers) payByLink(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		log.Warn().Err(err).Msg("checkout.link.invalid_amount")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidAmount, err.Error())
		return
	}

	session, err := s.stripe.CreateCheckoutSession(r.Context(), stripesvc.CreateSessionRequest{
		Amount:         amount,
		Creator:        strings.TrimSpace(r.URL.Query().Get("creator")),
		CustomerEmail:  s.cfg.Checkout.BusinessEmail,
		Source:         "link",
		IdempotencyKey: idempotency.KeyFromRequest(r),
	})
	if err != nil {
		log.Error().Err(err).Msg("checkout.link.session_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeStripeError, "payment failed")
		return
	}

	log.Info().
		Str("session_id", session.ID).
		Int64("amount", amount).
		Msg("checkout.link.session_created")
	responders.Redirect(w, r, session.URL, http.StatusSeeOther)
}

func (s *handlers) createQuerySession(w http.ResponseWriter, r *http.Request, source string) {
	log := logger.FromContext(r.Context())

	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		log.Warn().Err(err).Str("source", source).Msg("checkout.invalid_amount")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidAmount, err.Error())
		return
	}
	creator := strings.TrimSpace(r.URL.Query().Get("creator"))

	req := stripesvc.CreateSessionRequest{
		Amount:         amount,
		Creator:        creator,
		Source:         source,
		IdempotencyKey: idempotency.KeyFromRequest(r),
	}
	if creator == "" {
		req.CustomerEmail = s.cfg.Checkout.BusinessEmail
	}

	session, err := s.stripe.CreateCheckoutSession(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("source", source).Msg("checkout.session_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeStripeError, "payment failed")
		return
	}

	log.Info().
		Str("session_id", session.ID).
		Str("source", source).
		Str("creator", creator).
		Int64("amount", amount).
		Msg("checkout.session_created")
	responders.JSON(w, http.StatusOK, checkoutResponse{SessionID: session.ID, URL: session.URL})
}

type creatorPayRequest struct {
	Amount        int64  `json:"amount"`
	SupporterName string `json:"supporterName"`
	Anonymous     bool   `json:"anonymous"`
	GiftMessage   string `json:"gift_message"`
	IsUK          bool   `json:"isUK"`
}

// payCreator creates a tip checkout session for a creator's public page.
// POST /creator/pay/{username}
func (s *handlers) payCreator(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	username := chi.URLParam(r, "username")

	var req creatorPayRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		log.Warn().Err(err).Msg("checkout.tip.invalid_body")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, err.Error())
		return
	}
	if req.Amount <= 0 {
		log.Warn().Int64("amount", req.Amount).Msg("checkout.tip.invalid_amount")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidAmount, "amount must be a positive number of pence")
		return
	}

	if _, err := s.profiles.FindByUsername(r.Context(), username); err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeCreatorNotFound, "creator not found", "username", username)
			return
		}
		log.Error().Err(err).Str("username", username).Msg("checkout.tip.lookup_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeDatabaseError, "failed to look up creator")
		return
	}

	session, err := s.stripe.CreateCheckoutSession(r.Context(), stripesvc.CreateSessionRequest{
		Amount:         req.Amount,
		Creator:        username,
		SupporterName:  strings.TrimSpace(req.SupporterName),
		GiftMessage:    strings.TrimSpace(req.GiftMessage),
		Anonymous:      req.Anonymous,
		Source:         "creator_page",
		IdempotencyKey: idempotency.KeyFromRequest(r),
	})
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("checkout.tip.session_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeStripeError, "payment failed")
		return
	}

	log.Info().
		Str("session_id", session.ID).
		Str("creator", username).
		Int64("amount", req.Amount).
		Bool("anonymous", req.Anonymous).
		Bool("is_uk", req.IsUK).
		Msg("checkout.tip.session_created")
	responders.JSON(w, http.StatusOK, checkoutResponse{SessionID: session.ID, URL: session.URL})
}
