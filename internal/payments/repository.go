package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/everpay/server/internal/config"
)

// DefaultListLimit caps dashboard listings when the caller does not specify one.
const DefaultListLimit = 100

// ErrNotFound is returned when a payment does not exist.
var ErrNotFound = errors.New("payments: payment not found")

// ErrMissingID is returned for writes without a provider identifier.
var ErrMissingID = errors.New("payments: payment id required")

// NameResolver resolves a creator username to its display name for list joins.
// Backends with access to the creators table do the join natively; the memory
// backend delegates here.
type NameResolver interface {
	ProfileName(ctx context.Context, username string) (string, bool)
}

// NameResolverFunc adapts a function to NameResolver.
type NameResolverFunc func(ctx context.Context, username string) (string, bool)

// ProfileName implements NameResolver.
func (f NameResolverFunc) ProfileName(ctx context.Context, username string) (string, bool) {
	return f(ctx, username)
}

// Repository captures the persistence contract for payment records.
type Repository interface {
	// Store performs an idempotent insert-or-replace keyed on Payment.ID.
	// The second write for an ID wins (last-write-wins); the only writer is
	// the webhook receiver and redelivered events carry identical content.
	Store(ctx context.Context, p Payment) error

	// Get returns the payment or ErrNotFound.
	Get(ctx context.Context, id string) (Payment, error)

	// ListAll returns payments newest first, joined with the creator display
	// name, capped at limit (DefaultListLimit when limit <= 0).
	ListAll(ctx context.Context, limit int) ([]Entry, error)

	// ListByCreator is ListAll filtered to a single creator. A creator with no
	// payments yields an empty slice, not an error.
	ListByCreator(ctx context.Context, username string, limit int) ([]Entry, error)

	Close() error
}

// NewRepository creates a Repository based on the configured storage backend.
// The shared *sql.DB is required for postgres; names is consulted only by the
// memory backend (mongodb joins against its own creators collection).
func NewRepository(cfg config.StorageConfig, sharedDB *sql.DB, names NameResolver) (Repository, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryRepository(names), nil
	case "postgres":
		if sharedDB == nil {
			return nil, fmt.Errorf("payments: postgres backend requires a shared db pool")
		}
		return NewPostgresRepositoryWithDB(sharedDB), nil
	case "mongodb":
		return NewMongoDBRepository(cfg.MongoDBURL, cfg.MongoDBDatabase)
	default:
		return nil, fmt.Errorf("payments: unknown storage backend %q", cfg.Backend)
	}
}

// MemoryRepository is an in-memory Repository for tests and development.
type MemoryRepository struct {
	mu       sync.RWMutex
	payments map[string]Payment // id -> payment
	names    NameResolver
}

// NewMemoryRepository constructs an empty MemoryRepository. A nil resolver
// leaves display names empty.
func NewMemoryRepository(names NameResolver) *MemoryRepository {
	return &MemoryRepository{
		payments: make(map[string]Payment),
		names:    names,
	}
}

// Store performs an idempotent insert-or-replace keyed on Payment.ID.
func (m *MemoryRepository) Store(ctx context.Context, p Payment) error {
	if p.ID == "" {
		return ErrMissingID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
	return nil
}

// Get returns the payment or ErrNotFound.
func (m *MemoryRepository) Get(ctx context.Context, id string) (Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

// ListAll returns payments newest first.
func (m *MemoryRepository) ListAll(ctx context.Context, limit int) ([]Entry, error) {
	return m.list(ctx, limit, func(Payment) bool { return true })
}

// ListByCreator returns one creator's payments newest first.
func (m *MemoryRepository) ListByCreator(ctx context.Context, username string, limit int) ([]Entry, error) {
	return m.list(ctx, limit, func(p Payment) bool { return p.Creator == username })
}

func (m *MemoryRepository) list(ctx context.Context, limit int, keep func(Payment) bool) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	m.mu.RLock()
	matched := make([]Payment, 0, len(m.payments))
	for _, p := range m.payments {
		if keep(p) {
			matched = append(matched, p)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}

	entries := make([]Entry, 0, len(matched))
	for _, p := range matched {
		entry := Entry{Payment: p}
		if p.Creator != "" && m.names != nil {
			if name, ok := m.names.ProfileName(ctx, p.Creator); ok {
				entry.ProfileName = name
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Close is a no-op for the memory backend.
func (m *MemoryRepository) Close() error {
	return nil
}
