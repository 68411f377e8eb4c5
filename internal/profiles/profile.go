package profiles

import (
	"strings"
	"time"
)

// SocialLink is a single entry in a creator's ordered link list.
type SocialLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Creator is a named account. Username is the primary identity; it is mutable
// as a display value (via RenameUsername) but payments reference it by value,
// so renames do not rewrite payment history.
type Creator struct {
	Username           string       `json:"username"`
	ProfileName        string       `json:"profile_name"`
	Bio                string       `json:"bio"`
	AvatarURL          string       `json:"avatar_url"`
	SocialLinks        []SocialLink `json:"social_links"`
	ThemeStart         string       `json:"theme_start"`
	ThemeMid           string       `json:"theme_mid"`
	ThemeEnd           string       `json:"theme_end"`
	Email              string       `json:"email,omitempty"`
	MilestoneEnabled   bool         `json:"milestone_enabled"`
	MilestoneAmount    int64        `json:"milestone_amount"` // minor currency units
	MilestoneText      string       `json:"milestone_text"`
	UpdatedAt          time.Time    `json:"updated_at"`
	LastUsernameChange *time.Time   `json:"last_username_change,omitempty"`

	// PasswordHash is never serialized and never returned to clients.
	PasswordHash string `json:"-"`
}

// ProfileInput is the single validated payload for profile upserts. Optional
// fields default here, once, instead of at every call site.
type ProfileInput struct {
	Username         string       `json:"username"`
	ProfileName      string       `json:"profile_name"`
	Bio              string       `json:"bio"`
	AvatarURL        string       `json:"avatar_url"`
	SocialLinks      []SocialLink `json:"social_links"`
	ThemeStart       string       `json:"theme_start"`
	ThemeMid         string       `json:"theme_mid"`
	ThemeEnd         string       `json:"theme_end"`
	MilestoneEnabled bool         `json:"milestone_enabled"`
	MilestoneAmount  int64        `json:"milestone_amount"`
	MilestoneText    string       `json:"milestone_text"`
}

// Normalize trims the username and applies defaults for omitted optional fields.
func (p *ProfileInput) Normalize() {
	p.Username = strings.TrimSpace(p.Username)
	if p.SocialLinks == nil {
		p.SocialLinks = []SocialLink{}
	}
	if p.MilestoneAmount < 0 {
		p.MilestoneAmount = 0
	}
}

// Validate reports whether the input can be persisted.
func (p *ProfileInput) Validate() error {
	if strings.TrimSpace(p.Username) == "" {
		return ErrMissingUsername
	}
	return nil
}

// Account is the payload for password-backed signup.
type Account struct {
	Username     string
	Email        string
	DisplayName  string
	PasswordHash string
}
