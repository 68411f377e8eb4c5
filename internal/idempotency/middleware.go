package idempotency

import (
	"bytes"
	"net/http"
	"time"
)

const (
	// HeaderKey is the standard idempotency key header.
	HeaderKey = "Idempotency-Key"

	// HeaderKeyAlt is an alternate header accepted from older frontends.
	HeaderKeyAlt = "X-Idempotency-Key"

	// DefaultTTL is how long a cached response is replayed.
	DefaultTTL = 24 * time.Hour
)

// KeyFromRequest extracts the client-supplied idempotency key, preferring
// the standard header over the legacy one. Empty means no key was sent.
func KeyFromRequest(r *http.Request) string {
	if key := r.Header.Get(HeaderKey); key != "" {
		return key
	}
	return r.Header.Get(HeaderKeyAlt)
}

// responseWriter captures the status and body of the wrapped response.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		body:           &bytes.Buffer{},
	}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) capturedHeaders() map[string]string {
	headers := make(map[string]string, len(rw.ResponseWriter.Header()))
	for key := range rw.ResponseWriter.Header() {
		headers[key] = rw.ResponseWriter.Header().Get(key)
	}
	return headers
}

// Middleware replays cached responses for repeated idempotency keys.
// Requests without a key pass through untouched; only 2xx responses are
// cached. The key is scoped by method and path so the same client key
// cannot collide across endpoints.
func Middleware(store Store, ttl time.Duration) func(http.Handler) http.Handler {
	if ttl == 0 {
		ttl = DefaultTTL
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := KeyFromRequest(r)
			if rawKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Method + ":" + r.URL.Path + ":" + rawKey

			if cached, found := store.Get(r.Context(), key); found {
				for k, v := range cached.Headers {
					w.Header().Set(k, v)
				}
				w.Header().Set("X-Idempotency-Replay", "true")
				w.WriteHeader(cached.StatusCode)
				w.Write(cached.Body)
				return
			}

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			if rw.statusCode >= 200 && rw.statusCode < 300 {
				store.Set(r.Context(), key, &Response{
					StatusCode: rw.statusCode,
					Headers:    rw.capturedHeaders(),
					Body:       rw.body.Bytes(),
					CachedAt:   time.Now(),
				}, ttl)
			}
		})
	}
}
