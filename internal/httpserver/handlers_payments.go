package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/everpay/server/internal/errors"
	"github.com/everpay/server/internal/logger"
	"github.com/everpay/server/internal/payments"
	"github.com/everpay/server/pkg/responders"
)

type paymentListResponse struct {
	Payments []payments.Entry `json:"payments"`
	Count    int              `json:"count"`
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0
	}
	return limit
}

// listPayments returns undirected (business) payments, newest first.
// GET /api/payments?limit=N
func (s *handlers) listPayments(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	limit := parseLimit(r.URL.Query().Get("limit"))

	entries, err := s.payments.ListAll(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("payments.list.failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeDatabaseError, "failed to list payments")
		return
	}

	// The dashboard's own payment feed only shows undirected payments;
	// creator tips live on the per-creator endpoint.
	undirected := make([]payments.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Creator == "" {
			undirected = append(undirected, e)
		}
	}

	responders.JSON(w, http.StatusOK, paymentListResponse{
		Payments: undirected,
		Count:    len(undirected),
	})
}

// listCreatorPayments returns one creator's payments, newest first.
// GET /api/payments/creator/{username}
func (s *handlers) listCreatorPayments(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	username := chi.URLParam(r, "username")
	limit := parseLimit(r.URL.Query().Get("limit"))

	entries, err := s.payments.ListByCreator(r.Context(), username, limit)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("payments.list_creator.failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeDatabaseError, "failed to list payments")
		return
	}

	responders.JSON(w, http.StatusOK, paymentListResponse{
		Payments: entries,
		Count:    len(entries),
	})
}
