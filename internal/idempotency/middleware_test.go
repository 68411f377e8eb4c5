package idempotency

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestKeyFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"standard header", map[string]string{HeaderKey: "key-1"}, "key-1"},
		{"legacy header", map[string]string{HeaderKeyAlt: "key-2"}, "key-2"},
		{"standard wins over legacy", map[string]string{HeaderKey: "key-1", HeaderKeyAlt: "key-2"}, "key-1"},
		{"no header", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/pay", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := KeyFromRequest(req); got != tt.want {
				t.Errorf("KeyFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware_ReplaysCachedResponse(t *testing.T) {
	store := NewMemoryStoreWithSize(10)
	defer store.Stop()

	calls := 0
	handler := Middleware(store, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"call":%d}`, calls)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/pay", nil)
		req.Header.Set(HeaderKey, "same-key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := do()
	second := do()

	if calls != 1 {
		t.Errorf("handler calls = %d, want 1 (second request replayed)", calls)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("replayed body = %q, want %q", second.Body.String(), first.Body.String())
	}
	if second.Header().Get("X-Idempotency-Replay") != "true" {
		t.Error("replayed response missing X-Idempotency-Replay header")
	}
	if first.Header().Get("X-Idempotency-Replay") == "true" {
		t.Error("first response marked as replay")
	}
}

func TestMiddleware_NoKeyPassesThrough(t *testing.T) {
	store := NewMemoryStoreWithSize(10)
	defer store.Stop()

	calls := 0
	handler := Middleware(store, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/pay", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}

	if calls != 2 {
		t.Errorf("handler calls = %d, want 2 without a key", calls)
	}
}

func TestMiddleware_ErrorsNotCached(t *testing.T) {
	store := NewMemoryStoreWithSize(10)
	defer store.Stop()

	calls := 0
	handler := Middleware(store, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/pay", nil)
		req.Header.Set(HeaderKey, "same-key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}

	if calls != 2 {
		t.Errorf("handler calls = %d, want 2 (5xx responses are retried, not replayed)", calls)
	}
}

func TestMiddleware_KeyScopedByPath(t *testing.T) {
	store := NewMemoryStoreWithSize(10)
	defer store.Stop()

	calls := 0
	handler := Middleware(store, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/pay", "/checkout"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(HeaderKey, "same-key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}

	if calls != 2 {
		t.Errorf("handler calls = %d, want 2 (same key, different endpoints)", calls)
	}
}
