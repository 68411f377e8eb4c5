// Package schema applies the relational schema as an explicit, ordered,
// idempotent migration list under a version marker. Evolution is
// additive-only (new nullable columns with defaults) so rolling deploys can
// run old and new binaries against the same database.
package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Migration is a single ordered schema step. Version numbers are contiguous
// and never reused; statements must be safe to re-run only in the sense that
// the version marker prevents re-application.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations is the ordered migration list. Append only.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create creators table",
		SQL: `
			CREATE TABLE IF NOT EXISTS creators (
				username TEXT PRIMARY KEY,
				profile_name TEXT,
				bio TEXT,
				avatar_url TEXT,
				social_links TEXT,
				theme_start TEXT,
				theme_mid TEXT,
				theme_end TEXT,
				email TEXT,
				password_hash TEXT,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				last_username_change TIMESTAMPTZ
			)`,
	},
	{
		Version: 2,
		Name:    "create payments table",
		SQL: `
			CREATE TABLE IF NOT EXISTS payments (
				id TEXT PRIMARY KEY,
				amount BIGINT NOT NULL,
				email TEXT,
				creator TEXT,
				status TEXT,
				created_at TIMESTAMPTZ NOT NULL,
				gift_name TEXT,
				gift_message TEXT,
				anonymous BOOLEAN DEFAULT false
			)`,
	},
	{
		Version: 3,
		Name:    "enforce email uniqueness for creators that set one",
		SQL: `
			CREATE UNIQUE INDEX IF NOT EXISTS creators_email_key
			ON creators (email)
			WHERE email IS NOT NULL AND email <> ''`,
	},
	{
		Version: 4,
		Name:    "add milestone columns",
		SQL: `
			ALTER TABLE creators ADD COLUMN IF NOT EXISTS milestone_enabled BOOLEAN DEFAULT false;
			ALTER TABLE creators ADD COLUMN IF NOT EXISTS milestone_amount BIGINT DEFAULT 0;
			ALTER TABLE creators ADD COLUMN IF NOT EXISTS milestone_text TEXT`,
	},
	{
		Version: 5,
		Name:    "index payments for dashboard listings",
		SQL: `
			CREATE INDEX IF NOT EXISTS payments_created_at_idx ON payments (created_at DESC);
			CREATE INDEX IF NOT EXISTS payments_creator_idx ON payments (creator, created_at DESC)`,
	},
}

// Apply runs all pending migrations in order, recording each applied version
// in schema_migrations. Safe to call on every startup.
func Apply(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("schema: create migrations table: %w", err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		if err := applyOne(ctx, db, m); err != nil {
			return err
		}
		log.Info().
			Int("version", m.Version).
			Str("name", m.Name).
			Msg("schema.migration_applied")
	}
	return nil
}

// currentVersion returns the highest applied migration version, 0 when none.
func currentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("schema: read current version: %w", err)
	}
	return int(version.Int64), nil
}

// applyOne runs a single migration and its version marker in one transaction,
// so a failed statement leaves no partial marker behind.
func applyOne(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("schema: begin migration %d: %w", m.Version, err)
	}

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("schema: apply migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("schema: record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("schema: commit migration %d: %w", m.Version, err)
	}
	return nil
}
