package payments

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepository implements Repository using PostgreSQL.
// The payments table is created by the schema migrator at startup.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepositoryWithDB creates a PostgreSQL-backed repository on a shared pool.
func NewPostgresRepositoryWithDB(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Store performs an idempotent insert-or-replace keyed on Payment.ID.
func (r *PostgresRepository) Store(ctx context.Context, p Payment) error {
	if p.ID == "" {
		return ErrMissingID
	}

	query := `
		INSERT INTO payments (
			id, amount, email, creator, status, created_at,
			gift_name, gift_message, anonymous
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			amount = EXCLUDED.amount,
			email = EXCLUDED.email,
			creator = EXCLUDED.creator,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			gift_name = EXCLUDED.gift_name,
			gift_message = EXCLUDED.gift_message,
			anonymous = EXCLUDED.anonymous`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Amount, p.Email, p.Creator, p.Status, p.CreatedAt,
		p.GiftName, p.GiftMessage, p.Anonymous,
	)
	if err != nil {
		return fmt.Errorf("payments: store payment: %w", err)
	}
	return nil
}

// Get returns the payment or ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Payment, error) {
	query := `
		SELECT id, amount, COALESCE(email, ''), COALESCE(creator, ''), COALESCE(status, ''),
		       created_at, COALESCE(gift_name, ''), COALESCE(gift_message, ''), COALESCE(anonymous, false)
		FROM payments
		WHERE id = $1`

	var p Payment
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Amount, &p.Email, &p.Creator, &p.Status,
		&p.CreatedAt, &p.GiftName, &p.GiftMessage, &p.Anonymous,
	)
	if err == sql.ErrNoRows {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, fmt.Errorf("payments: get payment: %w", err)
	}
	return p, nil
}

// ListAll returns payments newest first, left-joined with the creator's
// display name so orphaned creator references still list.
func (r *PostgresRepository) ListAll(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := listQuery + ` ORDER BY p.created_at DESC LIMIT $1`
	return r.queryEntries(ctx, query, limit)
}

// ListByCreator returns one creator's payments newest first.
func (r *PostgresRepository) ListByCreator(ctx context.Context, username string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := listQuery + ` WHERE p.creator = $2 ORDER BY p.created_at DESC LIMIT $1`
	return r.queryEntries(ctx, query, limit, username)
}

// Close is a no-op: the shared pool is owned by the caller.
func (r *PostgresRepository) Close() error {
	return nil
}

const listQuery = `
	SELECT p.id, p.amount, COALESCE(p.email, ''), COALESCE(p.creator, ''), COALESCE(p.status, ''),
	       p.created_at, COALESCE(p.gift_name, ''), COALESCE(p.gift_message, ''), COALESCE(p.anonymous, false),
	       COALESCE(c.profile_name, '')
	FROM payments p
	LEFT JOIN creators c ON p.creator = c.username`

func (r *PostgresRepository) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("payments: list payments: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.Amount, &e.Email, &e.Creator, &e.Status,
			&e.CreatedAt, &e.GiftName, &e.GiftMessage, &e.Anonymous,
			&e.ProfileName,
		); err != nil {
			return nil, fmt.Errorf("payments: scan payment: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payments: iterate payments: %w", err)
	}
	return entries, nil
}
