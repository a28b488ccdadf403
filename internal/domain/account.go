package domain

import "time"

// Provider identifiers.
const (
	ProviderYouTube   = "youtube"
	ProviderX         = "x"
	ProviderInstagram = "instagram"
	ProviderTikTok    = "tiktok"
)

// SocialAccount represents one user's link to one provider identity.
// A row is unique per (user_id, provider, provider_user_id); re-linking the
// same identity updates the existing row.
type SocialAccount struct {
	ID             string     `json:"id" db:"id"`
	UserID         string     `json:"user_id" db:"user_id"`
	Provider       string     `json:"provider" db:"provider"`
	ProviderUserID string     `json:"provider_user_id" db:"provider_user_id"`
	DisplayName    string     `json:"display_name" db:"display_name"`
	AvatarURL      string     `json:"avatar_url" db:"avatar_url"`
	AccessToken    string     `json:"-" db:"access_token"`
	RefreshToken   *string    `json:"-" db:"refresh_token"`
	TokenExpiresAt *time.Time `json:"token_expires_at" db:"token_expires_at"`
	LastSyncedAt   *time.Time `json:"last_synced_at" db:"last_synced_at"`
	ConnectedAt    time.Time  `json:"connected_at" db:"connected_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// TokenExpiringWithin reports whether the account's access token expires
// within d. Accounts without a recorded expiry always report as expiring,
// since there is no way to tell the token is still good.
func (a *SocialAccount) TokenExpiringWithin(d time.Duration) bool {
	if a.TokenExpiresAt == nil {
		return true
	}
	return time.Until(*a.TokenExpiresAt) <= d
}
