package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/everpay/server/internal/config"
	"github.com/everpay/server/internal/profiles"
)

func newTestService(t *testing.T, admin config.AuthConfig) (*Service, *profiles.MemoryRepository) {
	t.Helper()
	repo := profiles.NewMemoryRepository()
	return NewService(repo, admin), repo
}

func TestSignup(t *testing.T) {
	svc, repo := newTestService(t, config.AuthConfig{})
	ctx := context.Background()

	creator, err := svc.Signup(ctx, SignupInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if creator.Username != "alice" {
		t.Errorf("Username = %q, want %q", creator.Username, "alice")
	}
	// Display name defaults to the username.
	if creator.ProfileName != "alice" {
		t.Errorf("ProfileName = %q, want %q", creator.ProfileName, "alice")
	}
	if creator.PasswordHash != "" {
		t.Error("Signup() returned the password hash, want it stripped")
	}

	stored, err := repo.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByUsername() error = %v", err)
	}
	if stored.PasswordHash == "" {
		t.Fatal("stored creator has no password hash")
	}
	if stored.PasswordHash == "correct horse" {
		t.Error("password stored in plaintext")
	}
	if !CheckPassword("correct horse", stored.PasswordHash) {
		t.Error("stored hash does not verify against the password")
	}
}

func TestSignup_MissingFields(t *testing.T) {
	svc, _ := newTestService(t, config.AuthConfig{})
	ctx := context.Background()

	tests := []struct {
		name  string
		input SignupInput
	}{
		{"no username", SignupInput{Email: "a@example.com", Password: "pw"}},
		{"no email", SignupInput{Username: "alice", Password: "pw"}},
		{"no password", SignupInput{Username: "alice", Email: "a@example.com"}},
		{"whitespace username", SignupInput{Username: "   ", Email: "a@example.com", Password: "pw"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Signup(ctx, tt.input); !errors.Is(err, ErrMissingFields) {
				t.Errorf("Signup() error = %v, want ErrMissingFields", err)
			}
		})
	}
}

func TestSignup_Conflicts(t *testing.T) {
	svc, _ := newTestService(t, config.AuthConfig{})
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "pw"}); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	if _, err := svc.Signup(ctx, SignupInput{Username: "alice", Email: "other@example.com", Password: "pw"}); !errors.Is(err, profiles.ErrUsernameTaken) {
		t.Errorf("duplicate username error = %v, want ErrUsernameTaken", err)
	}
	if _, err := svc.Signup(ctx, SignupInput{Username: "bob", Email: "alice@example.com", Password: "pw"}); !errors.Is(err, profiles.ErrEmailTaken) {
		t.Errorf("duplicate email error = %v, want ErrEmailTaken", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t, config.AuthConfig{})
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "correct horse", DisplayName: "Alice Art"}); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	session, err := svc.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if session.Username != "alice" || session.Role != RoleCreator {
		t.Errorf("session = %+v, want alice/creator", session)
	}
	if session.ProfileName != "Alice Art" {
		t.Errorf("ProfileName = %q, want %q", session.ProfileName, "Alice Art")
	}
}

func TestLogin_IdenticalErrorForUnknownAndWrongPassword(t *testing.T) {
	svc, _ := newTestService(t, config.AuthConfig{})
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "correct horse"}); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	_, unknownErr := svc.Login(ctx, "ghost@example.com", "whatever")
	_, wrongErr := svc.Login(ctx, "alice@example.com", "wrong password")

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", unknownErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", wrongErr)
	}
	// Account enumeration guard: both failures look identical.
	if unknownErr.Error() != wrongErr.Error() {
		t.Errorf("error messages differ: %q vs %q", unknownErr, wrongErr)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	svc, _ := newTestService(t, config.AuthConfig{})
	ctx := context.Background()

	if _, err := svc.Login(ctx, "", "pw"); !errors.Is(err, ErrMissingFields) {
		t.Errorf("Login(no email) error = %v, want ErrMissingFields", err)
	}
	if _, err := svc.Login(ctx, "a@example.com", ""); !errors.Is(err, ErrMissingFields) {
		t.Errorf("Login(no password) error = %v, want ErrMissingFields", err)
	}
}

func TestLogin_AdminOverride(t *testing.T) {
	admin := config.AuthConfig{AdminEmail: "admin@everpayapp.co.uk", AdminPassword: "hunter2"}
	svc, _ := newTestService(t, admin)
	ctx := context.Background()

	session, err := svc.Login(ctx, "Admin@EverPayApp.co.uk", "hunter2")
	if err != nil {
		t.Fatalf("Login(admin) error = %v", err)
	}
	if session.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", session.Role, RoleAdmin)
	}

	// Wrong admin password falls through to creator auth and fails the
	// same way as any other bad login.
	if _, err := svc.Login(ctx, "admin@everpayapp.co.uk", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(admin, wrong pw) error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_AdminDisabledWithoutPassword(t *testing.T) {
	svc, _ := newTestService(t, config.AuthConfig{AdminEmail: "admin@everpayapp.co.uk"})

	if _, err := svc.Login(context.Background(), "admin@everpayapp.co.uk", ""); !errors.Is(err, ErrMissingFields) {
		t.Errorf("Login(admin, empty pw) error = %v, want ErrMissingFields", err)
	}
	if _, err := svc.Login(context.Background(), "admin@everpayapp.co.uk", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(admin, no configured pw) error = %v, want ErrInvalidCredentials", err)
	}
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !CheckPassword("s3cret", hash) {
		t.Error("CheckPassword() = false for matching password")
	}
	if CheckPassword("other", hash) {
		t.Error("CheckPassword() = true for wrong password")
	}
}
