package httpserver

import (
	"errors"
	"net/http"

	"github.com/everpay/server/internal/auth"
	apierrors "github.com/everpay/server/internal/errors"
	"github.com/everpay/server/internal/logger"
	"github.com/everpay/server/internal/profiles"
	"github.com/everpay/server/pkg/responders"
)

// signup registers a new creator account.
// POST /auth/signup
func (s *handlers) signup(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var input auth.SignupInput
	if err := decodeJSON(r.Body, &input); err != nil {
		log.Warn().Err(err).Msg("auth.signup.invalid_body")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, err.Error())
		return
	}

	creator, err := s.auth.Signup(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "username, email and password are required")
		case errors.Is(err, profiles.ErrUsernameTaken):
			apierrors.WriteSimpleError(w, apierrors.ErrCodeUsernameTaken, "username already taken")
		case errors.Is(err, profiles.ErrEmailTaken):
			apierrors.WriteSimpleError(w, apierrors.ErrCodeEmailTaken, "email already in use")
		default:
			log.Error().Err(err).Msg("auth.signup.failed")
			apierrors.WriteSimpleError(w, apierrors.ErrCodeDatabaseError, "failed to create account")
		}
		return
	}

	log.Info().
		Str("username", creator.Username).
		Str("email", logger.RedactEmail(creator.Email)).
		Msg("auth.signup.created")
	responders.JSON(w, http.StatusCreated, creator)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login authenticates a creator (or the configured admin) by email and
// password. Unknown emails and wrong passwords produce the same response.
// POST /auth/login
func (s *handlers) login(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req loginRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		log.Warn().Err(err).Msg("auth.login.invalid_body")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, err.Error())
		return
	}

	session, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "email and password are required")
		case errors.Is(err, auth.ErrInvalidCredentials):
			log.Warn().Str("email", logger.RedactEmail(req.Email)).Msg("auth.login.rejected")
			apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidCredentials, "invalid email or password")
		default:
			log.Error().Err(err).Msg("auth.login.failed")
			apierrors.WriteSimpleError(w, apierrors.ErrCodeDatabaseError, "failed to log in")
		}
		return
	}

	log.Info().
		Str("username", session.Username).
		Str("role", session.Role).
		Msg("auth.login.success")
	responders.JSON(w, http.StatusOK, session)
}
