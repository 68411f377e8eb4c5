package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/everpay/server/internal/errors"
	"github.com/everpay/server/internal/logger"
	"github.com/everpay/server/internal/profiles"
	"github.com/everpay/server/pkg/responders"
)

// profileResponse is the public view of a creator. The login email and
// credentials never leave through profile endpoints.
type profileResponse struct {
	Username         string                `json:"username"`
	ProfileName      string                `json:"profile_name"`
	Bio              string                `json:"bio"`
	AvatarURL        string                `json:"avatar_url"`
	SocialLinks      []profiles.SocialLink `json:"social_links"`
	ThemeStart       string                `json:"theme_start"`
	ThemeMid         string                `json:"theme_mid"`
	ThemeEnd         string                `json:"theme_end"`
	MilestoneEnabled bool                  `json:"milestone_enabled"`
	MilestoneAmount  int64                 `json:"milestone_amount"`
	MilestoneText    string                `json:"milestone_text"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func publicProfile(c profiles.Creator) profileResponse {
	return profileResponse{
		Username:         c.Username,
		ProfileName:      c.ProfileName,
		Bio:              c.Bio,
		AvatarURL:        c.AvatarURL,
		SocialLinks:      c.SocialLinks,
		ThemeStart:       c.ThemeStart,
		ThemeMid:         c.ThemeMid,
		ThemeEnd:         c.ThemeEnd,
		MilestoneEnabled: c.MilestoneEnabled,
		MilestoneAmount:  c.MilestoneAmount,
		MilestoneText:    c.MilestoneText,
		UpdatedAt:        c.UpdatedAt,
	}
}

// getProfile returns a creator's public profile.
// GET /api/creator/profile?username=
func (s *handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "username is required")
		return
	}

	creator, err := s.profiles.FindByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeCreatorNotFound, "creator not found", "username", username)
			return
		}
		log.Error().Err(err).Str("username", username).Msg("profile.get.failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeDatabaseError, "failed to load profile")
		return
	}

	responders.JSON(w, http.StatusOK, publicProfile(creator))
}

// updateProfile upserts the editable fields of a creator profile. Credentials
// are never written through this path.
// POST /api/creator/profile/update
func (s *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var input profiles.ProfileInput
	if err := decodeJSON(r.Body, &input); err != nil {
		log.Warn().Err(err).Msg("profile.update.invalid_body")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, err.Error())
		return
	}

	if err := s.profiles.UpsertProfile(r.Context(), input); err != nil {
		if errors.Is(err, profiles.ErrMissingUsername) {
			apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "username is required")
			return
		}
		log.Error().Err(err).Str("username", input.Username).Msg("profile.update.failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeDatabaseError, "failed to save profile")
		return
	}

	creator, err := s.profiles.FindByUsername(r.Context(), strings.TrimSpace(input.Username))
	if err != nil {
		log.Error().Err(err).Str("username", input.Username).Msg("profile.update.readback_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeDatabaseError, "failed to load profile")
		return
	}

	log.Info().Str("username", creator.Username).Msg("profile.updated")
	responders.JSON(w, http.StatusOK, publicProfile(creator))
}

type renameRequest struct {
	Username    string `json:"username"`
	NewUsername string `json:"new_username"`
}

// renameUsername changes a creator's primary identity. Payment history keeps
// the old username; renames do not rewrite it.
// POST /api/creator/username
func (s *handlers) renameUsername(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req renameRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		log.Warn().Err(err).Msg("profile.rename.invalid_body")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.NewUsername = strings.TrimSpace(req.NewUsername)
	if req.Username == "" || req.NewUsername == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "username and new_username are required")
		return
	}
	if req.Username == req.NewUsername {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidUsername, "new username matches the current one")
		return
	}

	if err := s.profiles.RenameUsername(r.Context(), req.Username, req.NewUsername); err != nil {
		switch {
		case errors.Is(err, profiles.ErrNotFound):
			apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeCreatorNotFound, "creator not found", "username", req.Username)
		case errors.Is(err, profiles.ErrUsernameTaken):
			apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeUsernameTaken, "username already taken", "username", req.NewUsername)
		default:
			log.Error().Err(err).Str("username", req.Username).Msg("profile.rename.failed")
			apierrors.WriteSimpleError(w, apierrors.ErrCodeDatabaseError, "failed to rename")
		}
		return
	}

	log.Info().
		Str("old_username", req.Username).
		Str("new_username", req.NewUsername).
		Msg("profile.renamed")
	responders.JSON(w, http.StatusOK, map[string]any{"username": req.NewUsername})
}
