package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/everpay/server/internal/auth"
	"github.com/everpay/server/internal/circuitbreaker"
	"github.com/everpay/server/internal/config"
	"github.com/everpay/server/internal/dbpool"
	"github.com/everpay/server/internal/httpserver"
	"github.com/everpay/server/internal/idempotency"
	"github.com/everpay/server/internal/lifecycle"
	"github.com/everpay/server/internal/logger"
	"github.com/everpay/server/internal/metrics"
	"github.com/everpay/server/internal/payments"
	"github.com/everpay/server/internal/profiles"
	"github.com/everpay/server/internal/schema"
	stripesvc "github.com/everpay/server/internal/stripe"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "everpay-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("EVERPAY_CONFIG"), "path to YAML config file (optional)")
	flag.Parse()

	// Local development keeps secrets in .env; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "everpay-server",
		Environment: cfg.Logging.Environment,
	})

	resources := lifecycle.NewManager()
	defer func() {
		if err := resources.Close(); err != nil {
			appLogger.Error().Err(err).Msg("main.shutdown_cleanup_failed")
		}
	}()

	metricsCollector := metrics.New(prometheus.DefaultRegisterer)

	var pool *dbpool.SharedPool
	if cfg.Storage.Backend == "postgres" {
		pool, err = dbpool.NewSharedPool(cfg.Storage.PostgresURL, cfg.Storage.PostgresPool)
		if err != nil {
			return fmt.Errorf("open postgres pool: %w", err)
		}
		resources.Register("postgres-pool", pool)

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = schema.Apply(migrateCtx, pool.DB(), appLogger)
		cancel()
		if err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	var sharedDB *sql.DB
	if pool != nil {
		sharedDB = pool.DB()
	}

	profileRepo, err := profiles.NewRepository(cfg.Storage, sharedDB)
	if err != nil {
		return fmt.Errorf("init profile repository: %w", err)
	}
	resources.Register("profile-repository", profileRepo)

	names := payments.NameResolverFunc(func(ctx context.Context, username string) (string, bool) {
		creator, err := profileRepo.FindByUsername(ctx, username)
		if err != nil {
			return "", false
		}
		return creator.ProfileName, true
	})

	paymentRepo, err := payments.NewRepository(cfg.Storage, sharedDB, names)
	if err != nil {
		return fmt.Errorf("init payment repository: %w", err)
	}
	resources.Register("payment-repository", paymentRepo)

	idempotencyStore := idempotency.NewMemoryStore()
	resources.RegisterFunc("idempotency-store", func() error {
		idempotencyStore.Stop()
		return nil
	})

	breaker := circuitbreaker.New(cfg.Breaker, appLogger)
	stripeClient := stripesvc.NewClient(cfg.Stripe, cfg.Checkout, paymentRepo, breaker, metricsCollector)
	authService := auth.NewService(profileRepo, cfg.Auth)

	server := httpserver.New(httpserver.Deps{
		Config:           cfg,
		Profiles:         profileRepo,
		Payments:         paymentRepo,
		Stripe:           stripeClient,
		Auth:             authService,
		Breaker:          breaker,
		IdempotencyStore: idempotencyStore,
		Metrics:          metricsCollector,
		Logger:           appLogger,
	})

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info().
			Str("address", cfg.Server.Address).
			Str("storage", cfg.Storage.Backend).
			Str("stripe_mode", cfg.Stripe.Mode).
			Msg("main.server_starting")
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case sig := <-stop:
		appLogger.Info().Str("signal", sig.String()).Msg("main.shutdown_requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	appLogger.Info().Msg("main.server_stopped")
	return nil
}
