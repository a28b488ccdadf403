package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/RicardoRB/socialstats/internal/config"
)

// TokenResponse is a provider token endpoint response. ProviderUserID is not
// part of the wire format: it is filled from the id_token sub claim when the
// provider returns one.
type TokenResponse struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	ExpiresIn      int64  `json:"expires_in"`
	TokenType      string `json:"token_type"`
	IDToken        string `json:"id_token"`
	Scope          string `json:"scope"`
	ProviderUserID string `json:"-"`
}

// ExchangeError is returned when a provider token endpoint answers non-OK.
// It carries the provider error text for user-visible diagnostics.
type ExchangeError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s token endpoint returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsRateLimited reports whether the provider rejected the request with 429.
func (e *ExchangeError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// ExchangeOptions select the provider-specific authentication variant for a
// token endpoint call.
type ExchangeOptions struct {
	// BasicAuth sends client credentials as HTTP Basic auth and omits them
	// from the form body (X).
	BasicAuth bool
	// ClientKeyParam names the client id form field "client_key" (TikTok).
	ClientKeyParam bool
	// CodeVerifier is the PKCE verifier recovered from the state token.
	CodeVerifier string
}

// Exchanger performs authorization-code and refresh-token exchanges against
// provider token endpoints.
type Exchanger struct {
	client  *http.Client
	baseURL string
}

// NewExchanger creates an exchanger. baseURL is the public application URL
// used to reconstruct callback redirect URIs.
func NewExchanger(baseURL string, client *http.Client) *Exchanger {
	if client == nil {
		client = http.DefaultClient
	}
	return &Exchanger{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// RedirectURI returns the callback URI registered for a provider, following
// the fixed /api/auth/{provider}/callback path convention.
func (e *Exchanger) RedirectURI(provider string) string {
	return fmt.Sprintf("%s/api/auth/%s/callback", e.baseURL, provider)
}

// ExchangeCode swaps an authorization code for tokens. When the response
// carries an OIDC id_token, the sub claim is extracted into ProviderUserID;
// the token arrived over the provider's TLS channel, so its signature is not
// re-verified here.
func (e *Exchanger) ExchangeCode(ctx context.Context, cfg config.ProviderConfig, provider, code string, opts ExchangeOptions) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("redirect_uri", e.RedirectURI(provider))
	form.Set("grant_type", "authorization_code")
	if opts.CodeVerifier != "" {
		form.Set("code_verifier", opts.CodeVerifier)
	}

	tokens, err := e.post(ctx, cfg, provider, form, opts)
	if err != nil {
		return nil, err
	}

	if tokens.IDToken != "" {
		if sub, err := DecodeIDTokenSubject(tokens.IDToken); err == nil {
			tokens.ProviderUserID = sub
		}
	}

	return tokens, nil
}

// Refresh exchanges a refresh token for a new access token using the same
// per-provider authentication variant as the code exchange.
func (e *Exchanger) Refresh(ctx context.Context, cfg config.ProviderConfig, provider, refreshToken string, opts ExchangeOptions) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	return e.post(ctx, cfg, provider, form, opts)
}

func (e *Exchanger) post(ctx context.Context, cfg config.ProviderConfig, provider string, form url.Values, opts ExchangeOptions) (*TokenResponse, error) {
	clientIDKey := "client_id"
	if opts.ClientKeyParam {
		clientIDKey = "client_key"
	}

	// With Basic auth the credentials travel in the Authorization header
	// only and must be omitted from the body.
	if !opts.BasicAuth {
		form.Set(clientIDKey, cfg.ClientID)
		form.Set("client_secret", cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if opts.BasicAuth {
		req.SetBasicAuth(cfg.ClientID, cfg.ClientSecret)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request to %s failed: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ExchangeError{Provider: provider, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var tokens TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token response from %s: %w", provider, err)
	}

	return &tokens, nil
}

// DecodeIDTokenSubject extracts the sub claim from a JWT id_token without
// verifying its signature.
func DecodeIDTokenSubject(idToken string) (string, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) < 2 {
		return "", fmt.Errorf("malformed id_token")
	}

	payload, err := decodeBase64Segment(parts[1])
	if err != nil {
		return "", fmt.Errorf("failed to decode id_token payload: %w", err)
	}

	var claims struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("failed to parse id_token claims: %w", err)
	}
	if claims.Sub == "" {
		return "", fmt.Errorf("id_token has no sub claim")
	}

	return claims.Sub, nil
}

// decodeBase64Segment accepts both URL-safe and standard alphabets, with or
// without padding, since providers are inconsistent here.
func decodeBase64Segment(segment string) ([]byte, error) {
	segment = strings.TrimRight(segment, "=")
	if b, err := base64.RawURLEncoding.DecodeString(segment); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(segment)
}
