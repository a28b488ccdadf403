package oauth

import (
	"fmt"
	"net/url"

	"github.com/RicardoRB/socialstats/internal/config"
)

// AuthURLOptions select the provider-specific query parameters on the
// authorization URL.
type AuthURLOptions struct {
	// OfflineAccess requests a refresh token (access_type=offline with a
	// forced consent prompt, YouTube).
	OfflineAccess bool
	// ClientKeyParam names the client id parameter "client_key" (TikTok).
	ClientKeyParam bool
	// CodeChallenge attaches PKCE S256 parameters (X).
	CodeChallenge string
}

// BuildAuthURL assembles a provider's OAuth2 authorize URL for a minted state.
func BuildAuthURL(cfg config.ProviderConfig, provider, redirectURI, state string, opts AuthURLOptions) (string, error) {
	u, err := url.Parse(cfg.AuthEndpoint)
	if err != nil {
		return "", fmt.Errorf("invalid auth endpoint for %s: %w", provider, err)
	}

	q := u.Query()
	if opts.ClientKeyParam {
		q.Set("client_key", cfg.ClientID)
	} else {
		q.Set("client_id", cfg.ClientID)
	}
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", cfg.Scope)
	q.Set("state", state)
	if opts.OfflineAccess {
		q.Set("access_type", "offline")
		q.Set("prompt", "consent")
	}
	if opts.CodeChallenge != "" {
		q.Set("code_challenge", opts.CodeChallenge)
		q.Set("code_challenge_method", "S256")
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
