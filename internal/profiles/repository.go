package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/everpay/server/internal/config"
)

// ErrNotFound is returned when a creator does not exist.
var ErrNotFound = errors.New("profiles: creator not found")

// ErrUsernameTaken is returned when a username already belongs to another creator.
var ErrUsernameTaken = errors.New("profiles: username already taken")

// ErrEmailTaken is returned when an email already belongs to another creator.
var ErrEmailTaken = errors.New("profiles: email already in use")

// ErrMissingUsername is returned for writes without a username.
var ErrMissingUsername = errors.New("profiles: username required")

// Repository captures the persistence contract for creator identity and
// display configuration. It owns the uniqueness of usernames and emails.
type Repository interface {
	// FindByUsername returns the creator or ErrNotFound.
	FindByUsername(ctx context.Context, username string) (Creator, error)

	// FindByEmail returns the creator or ErrNotFound. Used for auth lookup and
	// to enforce email uniqueness before signup.
	FindByEmail(ctx context.Context, email string) (Creator, error)

	// UpsertProfile inserts a new creator or updates every editable field of an
	// existing one. It never touches email or password_hash, and stamps
	// updated_at with the wall clock at the moment of the write.
	UpsertProfile(ctx context.Context, input ProfileInput) error

	// CreateAccount inserts a creator with credentials. Returns ErrUsernameTaken
	// or ErrEmailTaken when the identity is already claimed.
	CreateAccount(ctx context.Context, acct Account) (Creator, error)

	// RenameUsername updates the primary identity in place and stamps
	// last_username_change. A taken target surfaces as ErrUsernameTaken.
	RenameUsername(ctx context.Context, oldUsername, newUsername string) error

	// SetCredentials attaches or replaces email and password hash on an
	// existing creator (admin repair path).
	SetCredentials(ctx context.Context, username, email, passwordHash string) error

	Close() error
}

// NewRepository creates a Repository based on the configured storage backend.
// For the postgres backend a shared *sql.DB must be supplied so repositories
// can reuse one pool; other backends ignore it.
func NewRepository(cfg config.StorageConfig, sharedDB *sql.DB) (Repository, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryRepository(), nil
	case "postgres":
		if sharedDB == nil {
			return nil, fmt.Errorf("profiles: postgres backend requires a shared db pool")
		}
		return NewPostgresRepositoryWithDB(sharedDB), nil
	case "mongodb":
		return NewMongoDBRepository(cfg.MongoDBURL, cfg.MongoDBDatabase)
	default:
		return nil, fmt.Errorf("profiles: unknown storage backend %q", cfg.Backend)
	}
}

// MemoryRepository is an in-memory Repository for tests and development.
type MemoryRepository struct {
	mu       sync.RWMutex
	creators map[string]Creator // username -> creator
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{creators: make(map[string]Creator)}
}

// FindByUsername returns the creator or ErrNotFound.
func (m *MemoryRepository) FindByUsername(ctx context.Context, username string) (Creator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.creators[username]
	if !ok {
		return Creator{}, ErrNotFound
	}
	return cloneCreator(c), nil
}

// FindByEmail returns the creator or ErrNotFound.
func (m *MemoryRepository) FindByEmail(ctx context.Context, email string) (Creator, error) {
	if email == "" {
		return Creator{}, ErrNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.creators {
		if c.Email == email {
			return cloneCreator(c), nil
		}
	}
	return Creator{}, ErrNotFound
}

// UpsertProfile inserts or updates editable fields, preserving credentials.
func (m *MemoryRepository) UpsertProfile(ctx context.Context, input ProfileInput) error {
	input.Normalize()
	if err := input.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.creators[input.Username]
	updated := Creator{
		Username:           input.Username,
		ProfileName:        input.ProfileName,
		Bio:                input.Bio,
		AvatarURL:          input.AvatarURL,
		SocialLinks:        cloneLinks(input.SocialLinks),
		ThemeStart:         input.ThemeStart,
		ThemeMid:           input.ThemeMid,
		ThemeEnd:           input.ThemeEnd,
		MilestoneEnabled:   input.MilestoneEnabled,
		MilestoneAmount:    input.MilestoneAmount,
		MilestoneText:      input.MilestoneText,
		Email:              existing.Email,
		PasswordHash:       existing.PasswordHash,
		LastUsernameChange: existing.LastUsernameChange,
		UpdatedAt:          time.Now().UTC(),
	}
	m.creators[input.Username] = updated
	return nil
}

// CreateAccount inserts a new creator with credentials.
func (m *MemoryRepository) CreateAccount(ctx context.Context, acct Account) (Creator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.creators[acct.Username]; exists {
		return Creator{}, ErrUsernameTaken
	}
	for _, c := range m.creators {
		if acct.Email != "" && c.Email == acct.Email {
			return Creator{}, ErrEmailTaken
		}
	}

	created := Creator{
		Username:     acct.Username,
		ProfileName:  acct.DisplayName,
		SocialLinks:  []SocialLink{},
		Email:        acct.Email,
		PasswordHash: acct.PasswordHash,
		UpdatedAt:    time.Now().UTC(),
	}
	m.creators[acct.Username] = created
	return cloneCreator(created), nil
}

// RenameUsername moves the record under a new key and stamps last_username_change.
func (m *MemoryRepository) RenameUsername(ctx context.Context, oldUsername, newUsername string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.creators[oldUsername]
	if !ok {
		return ErrNotFound
	}
	if _, taken := m.creators[newUsername]; taken {
		return ErrUsernameTaken
	}

	now := time.Now().UTC()
	c.Username = newUsername
	c.LastUsernameChange = &now
	c.UpdatedAt = now
	delete(m.creators, oldUsername)
	m.creators[newUsername] = c
	return nil
}

// SetCredentials replaces email and password hash on an existing creator.
func (m *MemoryRepository) SetCredentials(ctx context.Context, username, email, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.creators[username]
	if !ok {
		return ErrNotFound
	}
	for _, other := range m.creators {
		if other.Username != username && email != "" && other.Email == email {
			return ErrEmailTaken
		}
	}
	c.Email = email
	c.PasswordHash = passwordHash
	c.UpdatedAt = time.Now().UTC()
	m.creators[username] = c
	return nil
}

// Close is a no-op for the memory backend.
func (m *MemoryRepository) Close() error {
	return nil
}

// Usernames returns all known usernames sorted, for test assertions.
func (m *MemoryRepository) Usernames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.creators))
	for name := range m.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func cloneCreator(c Creator) Creator {
	c.SocialLinks = cloneLinks(c.SocialLinks)
	if c.LastUsernameChange != nil {
		t := *c.LastUsernameChange
		c.LastUsernameChange = &t
	}
	return c
}

// cloneLinks copies a link list. An empty list stays an empty non-nil slice so
// it serializes as [] rather than null.
func cloneLinks(links []SocialLink) []SocialLink {
	cloned := append([]SocialLink(nil), links...)
	if cloned == nil {
		cloned = []SocialLink{}
	}
	return cloned
}
