package httpserver

import (
	"net/http"
	"time"

	"github.com/everpay/server/pkg/responders"
)

// health reports liveness plus enough state for a dashboard status light.
// GET /health
func (s *handlers) health(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(serverStartTime).Seconds()),
		"storage":        s.cfg.Storage.Backend,
		"stripe_breaker": s.breaker.State(),
	})
}
