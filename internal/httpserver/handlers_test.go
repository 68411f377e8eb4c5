package httpserver

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/everpay/server/internal/auth"
	"github.com/everpay/server/internal/circuitbreaker"
	"github.com/everpay/server/internal/config"
	"github.com/everpay/server/internal/idempotency"
	"github.com/everpay/server/internal/metrics"
	"github.com/everpay/server/internal/payments"
	"github.com/everpay/server/internal/profiles"
	stripesvc "github.com/everpay/server/internal/stripe"
)

const testWebhookSecret = "whsec_test_secret"

// failingPayments wraps a repository and fails writes on demand, to exercise
// the webhook's storage-failure path.
type failingPayments struct {
	payments.Repository
	failStore bool
}

func (f *failingPayments) Store(ctx context.Context, p payments.Payment) error {
	if f.failStore {
		return errors.New("boom")
	}
	return f.Repository.Store(ctx, p)
}

type testEnv struct {
	server   *Server
	profiles *profiles.MemoryRepository
	payments *failingPayments
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Address: ":0"},
		Stripe: config.StripeConfig{
			SecretKey:     "sk_test_key",
			WebhookSecret: testWebhookSecret,
			Mode:          "test",
		},
		Checkout: config.CheckoutConfig{
			FrontendURL:   "https://everpayapp.co.uk",
			Currency:      "gbp",
			BusinessEmail: "hello@everpayapp.co.uk",
		},
		Storage: config.StorageConfig{Backend: "memory"},
		Auth:    config.AuthConfig{AdminEmail: "admin@everpayapp.co.uk", AdminPassword: "hunter2"},
	}

	profileRepo := profiles.NewMemoryRepository()
	names := payments.NameResolverFunc(func(ctx context.Context, username string) (string, bool) {
		creator, err := profileRepo.FindByUsername(ctx, username)
		if err != nil {
			return "", false
		}
		return creator.ProfileName, true
	})
	paymentRepo := &failingPayments{Repository: payments.NewMemoryRepository(names)}

	collector := metrics.New(prometheus.NewRegistry())
	breaker := circuitbreaker.New(config.BreakerConfig{Enabled: false}, zerolog.Nop())
	stripeClient := stripesvc.NewClient(cfg.Stripe, cfg.Checkout, paymentRepo, breaker, collector)
	authService := auth.NewService(profileRepo, cfg.Auth)

	store := idempotency.NewMemoryStore()
	t.Cleanup(store.Stop)

	server := New(Deps{
		Config:           cfg,
		Profiles:         profileRepo,
		Payments:         paymentRepo,
		Stripe:           stripeClient,
		Auth:             authService,
		Breaker:          breaker,
		IdempotencyStore: store,
		Metrics:          collector,
		Logger:           zerolog.Nop(),
	})

	return &testEnv{server: server, profiles: profileRepo, payments: paymentRepo}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func signPayload(payload []byte) string {
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testWebhookSecret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func completedSessionPayload(t *testing.T, session map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	payload, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": "checkout.session.completed",
		"data": map[string]any{"object": json.RawMessage(raw)},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func (e *testEnv) postWebhook(t *testing.T, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	e.server.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_InvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	payload := completedSessionPayload(t, map[string]any{"id": "cs_1", "amount_total": 500})

	rec := env.postWebhook(t, payload, "t=1,v1=deadbeef")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	// Nothing is persisted on a failed signature check.
	entries, err := env.payments.ListAll(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("payments stored = %d, want 0", len(entries))
	}
}

func TestWebhook_CompletedSessionStoresPayment(t *testing.T) {
	env := newTestEnv(t)
	payload := completedSessionPayload(t, map[string]any{
		"id":               "cs_1",
		"amount_total":     500,
		"currency":         "gbp",
		"payment_status":   "paid",
		"customer_details": map[string]any{"email": "fan@example.com"},
		"metadata":         map[string]string{"creator": "alice", "anonymous": "true"},
	})

	rec := env.postWebhook(t, payload, signPayload(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	stored, err := env.payments.Get(context.Background(), "cs_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Amount != 500 || stored.Creator != "alice" || !stored.Anonymous {
		t.Errorf("stored = %+v, want amount 500, creator alice, anonymous", stored)
	}

	// Redelivery is acknowledged and does not duplicate.
	rec = env.postWebhook(t, payload, signPayload(payload))
	if rec.Code != http.StatusOK {
		t.Errorf("redelivery status = %d, want 200", rec.Code)
	}
	entries, err := env.payments.ListAll(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("payments after redelivery = %d, want 1", len(entries))
	}
}

func TestWebhook_StorageFailureReturns500(t *testing.T) {
	env := newTestEnv(t)
	env.payments.failStore = true

	payload := completedSessionPayload(t, map[string]any{"id": "cs_1", "amount_total": 500})
	rec := env.postWebhook(t, payload, signPayload(payload))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 so the provider redelivers", rec.Code)
	}
}

func TestWebhook_IgnoredEventTypeAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	payload, err := json.Marshal(map[string]any{
		"id":   "evt_2",
		"type": "payment_intent.created",
		"data": map[string]any{"object": map[string]any{"id": "pi_1"}},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	rec := env.postWebhook(t, payload, signPayload(payload))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["type"] != "payment_intent.created" {
		t.Errorf("type = %v, want payment_intent.created", body["type"])
	}
}

func TestCheckout_InvalidAmounts(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		target string
	}{
		{"missing", "/pay"},
		{"zero", "/pay?amount=0"},
		{"negative", "/checkout?amount=-100"},
		{"fractional", "/checkout?amount=4.99"},
		{"not a number", "/link?amount=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.target, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			var body map[string]any
			decodeBody(t, rec, &body)
			detail, _ := body["error"].(map[string]any)
			if detail["code"] != "invalid_amount" {
				t.Errorf("error code = %v, want invalid_amount", detail["code"])
			}
		})
	}
}

func TestCreatorPay_UnknownCreator(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/creator/pay/ghost", map[string]any{"amount": 500})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreatorPay_InvalidAmount(t *testing.T) {
	env := newTestEnv(t)
	if err := env.profiles.UpsertProfile(context.Background(), profiles.ProfileInput{Username: "alice"}); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}

	rec := env.do(t, http.MethodPost, "/creator/pay/alice", map[string]any{"amount": 0})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func seedPayment(t *testing.T, env *testEnv, id, creator string, amount int64, at time.Time) {
	t.Helper()
	err := env.payments.Store(context.Background(), payments.Payment{
		ID:        id,
		Amount:    amount,
		Creator:   creator,
		Status:    "paid",
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("Store(%s) error = %v", id, err)
	}
}

func TestListPayments_FiltersToUndirected(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	seedPayment(t, env, "cs_1", "", 500, now.Add(-time.Minute))
	seedPayment(t, env, "cs_2", "alice", 300, now.Add(-30*time.Second))
	seedPayment(t, env, "cs_3", "", 700, now)

	rec := env.do(t, http.MethodGet, "/api/payments", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body paymentListResponse
	decodeBody(t, rec, &body)
	if body.Count != 2 {
		t.Fatalf("count = %d, want 2 undirected payments", body.Count)
	}
	if body.Payments[0].ID != "cs_3" || body.Payments[1].ID != "cs_1" {
		t.Errorf("order = [%q %q], want [cs_3 cs_1]", body.Payments[0].ID, body.Payments[1].ID)
	}
}

func TestListCreatorPayments(t *testing.T) {
	env := newTestEnv(t)
	if err := env.profiles.UpsertProfile(context.Background(), profiles.ProfileInput{Username: "alice", ProfileName: "Alice Art"}); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}
	now := time.Now().UTC()
	seedPayment(t, env, "cs_1", "alice", 500, now.Add(-time.Minute))
	seedPayment(t, env, "cs_2", "bob", 300, now)

	rec := env.do(t, http.MethodGet, "/api/payments/creator/alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body paymentListResponse
	decodeBody(t, rec, &body)
	if body.Count != 1 {
		t.Fatalf("count = %d, want 1", body.Count)
	}
	if body.Payments[0].ProfileName != "Alice Art" {
		t.Errorf("ProfileName = %q, want joined display name", body.Payments[0].ProfileName)
	}
}

func TestProfileEndpoints(t *testing.T) {
	env := newTestEnv(t)

	// Missing username on lookup.
	rec := env.do(t, http.MethodGet, "/api/creator/profile", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("lookup without username status = %d, want 400", rec.Code)
	}

	// Unknown creator.
	rec = env.do(t, http.MethodGet, "/api/creator/profile?username=ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown creator status = %d, want 404", rec.Code)
	}

	// Upsert then read back.
	rec = env.do(t, http.MethodPost, "/api/creator/profile/update", map[string]any{
		"username":     "alice",
		"profile_name": "Alice Art",
		"bio":          "painter",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/creator/profile?username=alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d, want 200", rec.Code)
	}
	var creator profiles.Creator
	decodeBody(t, rec, &creator)
	if creator.ProfileName != "Alice Art" || creator.Bio != "painter" {
		t.Errorf("creator = %+v, want saved fields", creator)
	}
	if strings.Contains(rec.Body.String(), "password_hash") {
		t.Error("profile response leaks password_hash")
	}
}

func TestProfileHidesAccountEmail(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/signup", map[string]any{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "correct horse",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/creator/profile?username=alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "alice@example.com") {
		t.Errorf("public profile leaks account email: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), `"email"`) {
		t.Errorf("public profile carries an email field: %s", rec.Body.String())
	}

	// The update read-back is equally public.
	rec = env.do(t, http.MethodPost, "/api/creator/profile/update", map[string]any{
		"username": "alice",
		"bio":      "painter",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "alice@example.com") {
		t.Errorf("update response leaks account email: %s", rec.Body.String())
	}
}

func TestRenameUsername(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.profiles.UpsertProfile(ctx, profiles.ProfileInput{Username: "alice"}); err != nil {
		t.Fatalf("UpsertProfile(alice) error = %v", err)
	}
	if err := env.profiles.UpsertProfile(ctx, profiles.ProfileInput{Username: "bob"}); err != nil {
		t.Fatalf("UpsertProfile(bob) error = %v", err)
	}

	tests := []struct {
		name     string
		body     map[string]any
		wantCode int
	}{
		{"success", map[string]any{"username": "alice", "new_username": "alice_art"}, http.StatusOK},
		{"missing fields", map[string]any{"username": "alice"}, http.StatusBadRequest},
		{"same name", map[string]any{"username": "bob", "new_username": "bob"}, http.StatusBadRequest},
		{"target taken", map[string]any{"username": "alice_art", "new_username": "bob"}, http.StatusConflict},
		{"unknown source", map[string]any{"username": "ghost", "new_username": "spirit"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/creator/username", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	// Signup.
	rec := env.do(t, http.MethodPost, "/auth/signup", map[string]any{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "correct horse",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("signup response leaks password material")
	}

	// Duplicate signup conflicts.
	rec = env.do(t, http.MethodPost, "/auth/signup", map[string]any{
		"username": "alice",
		"email":    "other@example.com",
		"password": "pw",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d, want 409", rec.Code)
	}

	// Login succeeds.
	rec = env.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "correct horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	// Unknown email and wrong password produce identical responses.
	recUnknown := env.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "ghost@example.com",
		"password": "whatever",
	})
	recWrong := env.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	if recUnknown.Code != http.StatusUnauthorized || recWrong.Code != http.StatusUnauthorized {
		t.Errorf("statuses = (%d, %d), want both 401", recUnknown.Code, recWrong.Code)
	}
	if recUnknown.Body.String() != recWrong.Body.String() {
		t.Errorf("bodies differ: %q vs %q", recUnknown.Body.String(), recWrong.Body.String())
	}

	// Admin override.
	rec = env.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "admin@everpayapp.co.uk",
		"password": "hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin login status = %d, want 200", rec.Code)
	}
	var session auth.Session
	decodeBody(t, rec, &session)
	if session.Role != auth.RoleAdmin {
		t.Errorf("role = %q, want admin", session.Role)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["storage"] != "memory" {
		t.Errorf("storage = %v, want memory", body["storage"])
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}
