package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/everpay/server/internal/config"
	"github.com/everpay/server/internal/dbpool"
	"github.com/everpay/server/internal/logger"
	"github.com/everpay/server/internal/schema"
)

// Applies pending schema migrations and exits. The server does the same at
// startup; this exists for running migrations ahead of a deploy.
func main() {
	configPath := flag.String("config", os.Getenv("EVERPAY_CONFIG"), "path to YAML config file (optional)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "everpay-migrate: load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.Backend != "postgres" {
		fmt.Fprintf(os.Stderr, "everpay-migrate: backend %q has no migrations\n", cfg.Storage.Backend)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "everpay-migrate",
		Environment: cfg.Logging.Environment,
	})

	pool, err := dbpool.NewSharedPool(cfg.Storage.PostgresURL, cfg.Storage.PostgresPool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "everpay-migrate: open postgres pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := schema.Apply(ctx, pool.DB(), log); err != nil {
		fmt.Fprintf(os.Stderr, "everpay-migrate: apply schema: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrate.completed")
}
