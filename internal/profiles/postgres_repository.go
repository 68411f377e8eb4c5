package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Postgres constraint names referenced when translating unique violations.
const (
	creatorsPKeyConstraint  = "creators_pkey"
	creatorsEmailConstraint = "creators_email_key"
)

// PostgresRepository implements Repository using PostgreSQL.
// The creators table is created by the schema migrator at startup.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepositoryWithDB creates a PostgreSQL-backed repository on a shared pool.
func NewPostgresRepositoryWithDB(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const creatorColumns = `username, COALESCE(profile_name, ''), COALESCE(bio, ''), COALESCE(avatar_url, ''),
       COALESCE(social_links, '[]'), COALESCE(theme_start, ''), COALESCE(theme_mid, ''), COALESCE(theme_end, ''),
       COALESCE(email, ''), COALESCE(password_hash, ''),
       COALESCE(milestone_enabled, false), COALESCE(milestone_amount, 0), COALESCE(milestone_text, ''),
       updated_at, last_username_change`

// FindByUsername returns the creator or ErrNotFound.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (Creator, error) {
	query := `SELECT ` + creatorColumns + ` FROM creators WHERE username = $1`
	return r.scanCreator(r.db.QueryRowContext(ctx, query, username))
}

// FindByEmail returns the creator or ErrNotFound.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Creator, error) {
	if email == "" {
		return Creator{}, ErrNotFound
	}
	query := `SELECT ` + creatorColumns + ` FROM creators WHERE email = $1`
	return r.scanCreator(r.db.QueryRowContext(ctx, query, email))
}

// UpsertProfile inserts a creator or updates every editable field of an
// existing row. Email and password_hash are deliberately absent from the
// UPDATE clause so profile edits never clobber credentials.
func (r *PostgresRepository) UpsertProfile(ctx context.Context, input ProfileInput) error {
	input.Normalize()
	if err := input.Validate(); err != nil {
		return err
	}

	links, err := json.Marshal(input.SocialLinks)
	if err != nil {
		return fmt.Errorf("profiles: marshal social links: %w", err)
	}

	query := `
		INSERT INTO creators (
			username, profile_name, bio, avatar_url, social_links,
			theme_start, theme_mid, theme_end,
			milestone_enabled, milestone_amount, milestone_text, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (username) DO UPDATE SET
			profile_name = EXCLUDED.profile_name,
			bio = EXCLUDED.bio,
			avatar_url = EXCLUDED.avatar_url,
			social_links = EXCLUDED.social_links,
			theme_start = EXCLUDED.theme_start,
			theme_mid = EXCLUDED.theme_mid,
			theme_end = EXCLUDED.theme_end,
			milestone_enabled = EXCLUDED.milestone_enabled,
			milestone_amount = EXCLUDED.milestone_amount,
			milestone_text = EXCLUDED.milestone_text,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		input.Username, input.ProfileName, input.Bio, input.AvatarURL, string(links),
		input.ThemeStart, input.ThemeMid, input.ThemeEnd,
		input.MilestoneEnabled, input.MilestoneAmount, input.MilestoneText,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("profiles: upsert profile: %w", err)
	}
	return nil
}

// CreateAccount inserts a creator with credentials.
func (r *PostgresRepository) CreateAccount(ctx context.Context, acct Account) (Creator, error) {
	query := `
		INSERT INTO creators (username, profile_name, email, password_hash, social_links, updated_at)
		VALUES ($1, $2, $3, $4, '[]', $5)`

	_, err := r.db.ExecContext(ctx, query,
		acct.Username, acct.DisplayName, acct.Email, acct.PasswordHash, time.Now().UTC())
	if err != nil {
		if conflictErr := translateUniqueViolation(err); conflictErr != nil {
			return Creator{}, conflictErr
		}
		return Creator{}, fmt.Errorf("profiles: create account: %w", err)
	}

	return r.FindByUsername(ctx, acct.Username)
}

// RenameUsername updates the primary identity in place.
func (r *PostgresRepository) RenameUsername(ctx context.Context, oldUsername, newUsername string) error {
	query := `
		UPDATE creators
		SET username = $1, last_username_change = $2, updated_at = $2
		WHERE username = $3`

	res, err := r.db.ExecContext(ctx, query, newUsername, time.Now().UTC(), oldUsername)
	if err != nil {
		if conflictErr := translateUniqueViolation(err); conflictErr != nil {
			return conflictErr
		}
		return fmt.Errorf("profiles: rename username: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("profiles: rename username: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCredentials attaches or replaces email and password hash on an existing creator.
func (r *PostgresRepository) SetCredentials(ctx context.Context, username, email, passwordHash string) error {
	query := `
		UPDATE creators
		SET email = $1, password_hash = $2, updated_at = $3
		WHERE username = $4`

	res, err := r.db.ExecContext(ctx, query, email, passwordHash, time.Now().UTC(), username)
	if err != nil {
		if conflictErr := translateUniqueViolation(err); conflictErr != nil {
			return conflictErr
		}
		return fmt.Errorf("profiles: set credentials: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("profiles: set credentials: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close is a no-op: the shared pool is owned by the caller.
func (r *PostgresRepository) Close() error {
	return nil
}

func (r *PostgresRepository) scanCreator(row *sql.Row) (Creator, error) {
	var c Creator
	var linksJSON string
	var lastChange sql.NullTime

	err := row.Scan(
		&c.Username, &c.ProfileName, &c.Bio, &c.AvatarURL,
		&linksJSON, &c.ThemeStart, &c.ThemeMid, &c.ThemeEnd,
		&c.Email, &c.PasswordHash,
		&c.MilestoneEnabled, &c.MilestoneAmount, &c.MilestoneText,
		&c.UpdatedAt, &lastChange,
	)
	if err == sql.ErrNoRows {
		return Creator{}, ErrNotFound
	}
	if err != nil {
		return Creator{}, fmt.Errorf("profiles: scan creator: %w", err)
	}

	if lastChange.Valid {
		t := lastChange.Time
		c.LastUsernameChange = &t
	}
	if err := json.Unmarshal([]byte(linksJSON), &c.SocialLinks); err != nil {
		// Legacy rows may hold malformed link blobs; treat them as empty.
		c.SocialLinks = []SocialLink{}
	}
	return c, nil
}

// translateUniqueViolation maps Postgres unique violations onto the
// repository's conflict errors, or returns nil for unrelated errors.
func translateUniqueViolation(err error) error {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case creatorsEmailConstraint:
		return ErrEmailTaken
	default:
		return ErrUsernameTaken
	}
}
