package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/everpay/server/internal/auth"
	"github.com/everpay/server/internal/circuitbreaker"
	"github.com/everpay/server/internal/config"
	"github.com/everpay/server/internal/idempotency"
	"github.com/everpay/server/internal/logger"
	"github.com/everpay/server/internal/metrics"
	"github.com/everpay/server/internal/payments"
	"github.com/everpay/server/internal/profiles"
	"github.com/everpay/server/internal/ratelimit"
	stripesvc "github.com/everpay/server/internal/stripe"
)

var serverStartTime = time.Now()

// Server wires handlers, middleware, and dependencies.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg      *config.Config
	profiles profiles.Repository
	payments payments.Repository
	stripe   *stripesvc.Client
	auth     *auth.Service
	breaker  *circuitbreaker.Breaker
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// Deps bundles the dependencies the server needs.
type Deps struct {
	Config           *config.Config
	Profiles         profiles.Repository
	Payments         payments.Repository
	Stripe           *stripesvc.Client
	Auth             *auth.Service
	Breaker          *circuitbreaker.Breaker
	IdempotencyStore idempotency.Store
	Metrics          *metrics.Metrics
	Logger           zerolog.Logger
}

// New builds the HTTP server with configured router.
func New(deps Deps) *Server {
	router := chi.NewRouter()

	s := &Server{
		handlers: handlers{
			cfg:      deps.Config,
			profiles: deps.Profiles,
			payments: deps.Payments,
			stripe:   deps.Stripe,
			auth:     deps.Auth,
			breaker:  deps.Breaker,
			metrics:  deps.Metrics,
			logger:   deps.Logger,
		},
		httpServer: &http.Server{
			Addr:         deps.Config.Server.Address,
			ReadTimeout:  deps.Config.Server.ReadTimeout.Duration,
			WriteTimeout: deps.Config.Server.WriteTimeout.Duration,
			IdleTimeout:  deps.Config.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	s.configureRouter(router, deps.IdempotencyStore)
	return s
}

func (s *Server) configureRouter(router chi.Router, idempotencyStore idempotency.Store) {
	cfg := s.cfg

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"Location"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeadersMiddleware)

	// Logging middleware goes first so every later middleware sees the
	// context-scoped request logger.
	router.Use(logger.Middleware(s.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Use(ratelimit.GlobalLimiter(cfg.RateLimit, s.metrics))
	router.Use(ratelimit.IPLimiter(cfg.RateLimit, s.metrics))

	// Lightweight endpoints with a short timeout.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/health", s.health)
		r.With(adminMetricsAuth(cfg.Server.AdminMetricsAPIKey)).Handle("/metrics", promhttp.Handler())
	})

	idempotencyMW := idempotency.Middleware(idempotencyStore, idempotency.DefaultTTL)

	// Payment endpoints talk to Stripe; give them a generous timeout.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		// Webhook stays at root for URL stability; it reads the raw body
		// itself for signature verification.
		r.Post("/webhook", s.handleWebhook)

		r.With(idempotencyMW).Get("/pay", s.payByBank)
		r.With(idempotencyMW).Get("/checkout", s.payByCard)
		r.Get("/link", s.payByLink)
		r.With(idempotencyMW).Post("/creator/pay/{username}", s.payCreator)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))

		r.Get("/api/payments", s.listPayments)
		r.Get("/api/payments/creator/{username}", s.listCreatorPayments)

		r.Get("/api/creator/profile", s.getProfile)
		r.Post("/api/creator/profile/update", s.updateProfile)
		r.Post("/api/creator/username", s.renameUsername)

		r.Post("/auth/signup", s.signup)
		r.Post("/auth/login", s.login)
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
