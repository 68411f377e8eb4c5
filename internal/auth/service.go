package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/everpay/server/internal/config"
	"github.com/everpay/server/internal/profiles"
)

// ErrInvalidCredentials is returned for both unknown identities and wrong
// passwords, so callers cannot distinguish the two (account enumeration).
var ErrInvalidCredentials = errors.New("auth: invalid email or password")

// ErrMissingFields is returned when a required signup/login field is absent.
var ErrMissingFields = errors.New("auth: missing required fields")

// Roles attached to a successful login.
const (
	RoleAdmin   = "admin"
	RoleCreator = "creator"
)

// Service implements signup and login on top of the profile repository.
type Service struct {
	profiles profiles.Repository
	admin    config.AuthConfig
}

// NewService builds an auth service. Admin login is disabled unless both
// admin email and password are configured.
func NewService(repo profiles.Repository, adminCfg config.AuthConfig) *Service {
	return &Service{profiles: repo, admin: adminCfg}
}

// SignupInput is the validated signup payload.
type SignupInput struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Session describes an authenticated identity. It never carries the password hash.
type Session struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	ProfileName string `json:"profile_name,omitempty"`
	Role        string `json:"role"`
}

// Signup creates a creator account with a hashed password. Duplicate
// usernames and emails surface as the repository's conflict errors.
func (s *Service) Signup(ctx context.Context, in SignupInput) (profiles.Creator, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return profiles.Creator{}, ErrMissingFields
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Username
	}

	// Pre-check both identities so the caller gets the specific conflict;
	// the unique constraints still guard the race underneath.
	if _, err := s.profiles.FindByEmail(ctx, in.Email); err == nil {
		return profiles.Creator{}, profiles.ErrEmailTaken
	} else if !errors.Is(err, profiles.ErrNotFound) {
		return profiles.Creator{}, err
	}
	if _, err := s.profiles.FindByUsername(ctx, in.Username); err == nil {
		return profiles.Creator{}, profiles.ErrUsernameTaken
	} else if !errors.Is(err, profiles.ErrNotFound) {
		return profiles.Creator{}, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return profiles.Creator{}, err
	}

	created, err := s.profiles.CreateAccount(ctx, profiles.Account{
		Username:     in.Username,
		Email:        in.Email,
		DisplayName:  in.DisplayName,
		PasswordHash: hash,
	})
	if err != nil {
		return profiles.Creator{}, err
	}

	created.PasswordHash = ""
	return created, nil
}

// Login authenticates by email and password. The configured admin identity
// short-circuits creator lookup; a failed admin password falls through to
// regular creator auth rather than revealing the admin account exists.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, ErrMissingFields
	}

	if s.admin.AdminPassword != "" && strings.EqualFold(email, s.admin.AdminEmail) {
		if password == s.admin.AdminPassword {
			return Session{Username: "admin", Email: email, Role: RoleAdmin}, nil
		}
	}

	creator, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if creator.PasswordHash == "" || !CheckPassword(password, creator.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}

	return Session{
		Username:    creator.Username,
		Email:       creator.Email,
		ProfileName: creator.ProfileName,
		Role:        RoleCreator,
	}, nil
}
