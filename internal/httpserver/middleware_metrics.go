package httpserver

import (
	"crypto/subtle"
	"net/http"

	apierrors "github.com/everpay/server/internal/errors"
	"github.com/everpay/server/pkg/responders"
)

// adminMetricsAuth protects /metrics with an optional bearer key. With no key
// configured the endpoint is open, which is fine behind a private network.
func adminMetricsAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			expected := "Bearer " + apiKey
			got := r.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				responders.JSON(w, http.StatusUnauthorized,
					apierrors.NewErrorResponse(apierrors.ErrCodeInvalidCredentials, "Invalid or missing admin API key", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
