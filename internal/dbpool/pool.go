package dbpool

import (
	"database/sql"
	"fmt"

	"github.com/everpay/server/internal/config"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SharedPool manages a single shared PostgreSQL connection pool.
// The profile and payment repositories use the same pool so the service
// holds one set of connections rather than one per repository.
type SharedPool struct {
	db *sql.DB
}

// NewSharedPool opens and verifies a shared PostgreSQL connection pool.
func NewSharedPool(connectionString string, poolConfig config.PostgresPoolConfig) (*SharedPool, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	config.ApplyPostgresPoolSettings(db, poolConfig)

	return &SharedPool{db: db}, nil
}

// DB returns the underlying *sql.DB for use by repositories and the migrator.
func (p *SharedPool) DB() *sql.DB {
	return p.db
}

// Close closes the shared connection pool. Called once at shutdown;
// sql.DB.Close is safe to call multiple times.
func (p *SharedPool) Close() error {
	return p.db.Close()
}
