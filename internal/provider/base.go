package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RicardoRB/socialstats/internal/config"
	"github.com/RicardoRB/socialstats/internal/domain"
	"github.com/RicardoRB/socialstats/internal/oauth"
	"github.com/RicardoRB/socialstats/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// refreshSkew is how close to expiry an access token may get before a fetch
// refreshes it instead of using it as-is.
const refreshSkew = 5 * time.Minute

// defaultAPIRate caps outbound calls per adapter so a wide sync window does
// not burn through a provider's quota in one burst.
const defaultAPIRate = 5

// apiError is a non-2xx response from a provider API.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider API returned status %d: %s", e.StatusCode, e.Body)
}

func (e *apiError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// base carries the plumbing shared by every platform adapter.
type base struct {
	id        string
	cfg       config.ProviderConfig
	exchanger *oauth.Exchanger
	accounts  repository.SocialAccountRepository
	client    *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
	now       func() time.Time
}

func newBase(id string, cfg config.ProviderConfig, deps Deps) base {
	client := deps.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		id:        id,
		cfg:       cfg,
		exchanger: deps.Exchanger,
		accounts:  deps.Accounts,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(defaultAPIRate), defaultAPIRate),
		logger:    logger.With(zap.String("provider", id)),
		now:       time.Now,
	}
}

func (b *base) Config() config.ProviderConfig {
	return b.cfg
}

// getJSON performs a rate-limited GET and decodes the response body into out.
// bearer may be empty for APIs authenticated through query parameters.
// Non-2xx responses come back as *apiError.
func (b *base) getJSON(ctx context.Context, rawURL, bearer string, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// authURL builds the authorize URL from the provider config and the shared
// callback convention.
func (b *base) authURL(st oauth.State, opts oauth.AuthURLOptions) (string, error) {
	return oauth.BuildAuthURL(b.cfg, b.id, b.exchanger.RedirectURI(b.id), st.Value, opts)
}

type refreshOptions struct {
	exchange oauth.ExchangeOptions
	// swallowRateLimit keeps the current access token when the token
	// endpoint answers 429: a soon-to-expire token still beats no token.
	swallowRateLimit bool
}

// refreshTokenIfNeeded returns an access token good for immediate use. When
// the stored token is within refreshSkew of expiry and a refresh token
// exists, it rotates credentials through the token endpoint and persists the
// result before returning.
func (b *base) refreshTokenIfNeeded(ctx context.Context, account *domain.SocialAccount, opts refreshOptions) (string, error) {
	if account.TokenExpiresAt != nil && !account.TokenExpiringWithin(refreshSkew) {
		return account.AccessToken, nil
	}
	if account.RefreshToken == nil || *account.RefreshToken == "" {
		return account.AccessToken, nil
	}

	tokens, err := b.exchanger.Refresh(ctx, b.cfg, b.id, *account.RefreshToken, opts.exchange)
	if err != nil {
		var exchErr *oauth.ExchangeError
		if opts.swallowRateLimit && errors.As(err, &exchErr) && exchErr.IsRateLimited() {
			b.logger.Warn("token endpoint rate limited, keeping current access token",
				zap.String("account_id", account.ID))
			return account.AccessToken, nil
		}
		return "", fmt.Errorf("failed to refresh %s token: %w", b.id, err)
	}

	var newRefresh *string
	if tokens.RefreshToken != "" {
		newRefresh = &tokens.RefreshToken
	}
	var newExpiry *time.Time
	if tokens.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
		newExpiry = &t
	}
	if err := b.accounts.UpdateTokens(ctx, account.ID, tokens.AccessToken, newRefresh, newExpiry); err != nil {
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	account.AccessToken = tokens.AccessToken
	if newRefresh != nil {
		account.RefreshToken = newRefresh
	}
	account.TokenExpiresAt = newExpiry
	return tokens.AccessToken, nil
}

// expiryFromSeconds converts a token endpoint expires_in into an absolute
// expiry, or nil when the provider did not report one.
func expiryFromSeconds(seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	t := time.Now().Add(time.Duration(seconds) * time.Second)
	return &t
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// dateString renders a point-in-time as the UTC calendar date used for
// metric bucketing.
func dateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// toFloat coerces the loosely typed values analytics APIs put in report
// cells into a float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
