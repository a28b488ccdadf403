package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/RicardoRB/socialstats/internal/config"
	"github.com/RicardoRB/socialstats/internal/domain"
	"github.com/RicardoRB/socialstats/internal/oauth"
	"github.com/RicardoRB/socialstats/internal/repository"
	"go.uber.org/zap"
)

// ErrIdentityUnresolvable is returned when a provider's OAuth flow completed
// but no usable provider-side identity could be resolved, e.g. an Instagram
// login without a linked Business Account. Not retryable: the user has to fix
// their provider-side setup first.
var ErrIdentityUnresolvable = errors.New("provider identity could not be resolved")

// OAuthTraits describe the protocol variants a provider needs during the
// OAuth flow. The generic URL builder and exchanger consult them.
type OAuthTraits struct {
	// UsesPKCE attaches a PKCE verifier to the state and challenge
	// parameters to the authorize URL (X).
	UsesPKCE bool
	// OfflineAccess requests a refresh token via access_type=offline with a
	// forced consent prompt (YouTube).
	OfflineAccess bool
	// ClientKeyParam names the client id parameter "client_key" (TikTok).
	ClientKeyParam bool
	// BasicAuthExchange authenticates token endpoint calls with HTTP Basic
	// auth instead of body credentials (X).
	BasicAuthExchange bool
}

// Provider is one platform adapter. FetchMetrics is the only required
// operation; the optional capabilities below are discovered by type
// assertion.
type Provider interface {
	ID() string
	Config() config.ProviderConfig
	OAuth() OAuthTraits

	// FetchMetrics normalizes the provider API into metric points for the
	// requested [from, to] window.
	FetchMetrics(ctx context.Context, account *domain.SocialAccount, from, to time.Time) ([]domain.MetricPoint, error)
}

// AuthURLBuilder is implemented by providers that cannot use the generic
// authorize URL builder as-is.
type AuthURLBuilder interface {
	AuthURL(st oauth.State) (string, error)
}

// CodeExchanger is implemented by providers whose identity resolution needs
// more than the generic exchange-and-upsert path.
type CodeExchanger interface {
	ExchangeCodeAndSave(ctx context.Context, userID, code string, verified oauth.VerifyResult) (*domain.SocialAccount, error)
}

// TokenRefresher is implemented by providers that rotate access tokens.
// RefreshTokenIfNeeded returns a token valid for immediate use; it persists
// rotated credentials before returning.
type TokenRefresher interface {
	RefreshTokenIfNeeded(ctx context.Context, account *domain.SocialAccount) (string, error)
}

// Deps are the collaborators shared by all adapters.
type Deps struct {
	Exchanger *oauth.Exchanger
	Accounts  repository.SocialAccountRepository
	Client    *http.Client
	Logger    *zap.Logger
}

// Registry is the capability table of configured providers, keyed by
// provider id.
type Registry struct {
	providers map[string]Provider
	order     []string
}

// NewRegistry builds the standard registry with all four platform adapters.
func NewRegistry(cfg config.ProvidersConfig, deps Deps) *Registry {
	r := NewEmptyRegistry()
	r.Register(NewYouTube(cfg.YouTube, deps))
	r.Register(NewX(cfg.X, deps))
	r.Register(NewInstagram(cfg.Instagram, deps))
	r.Register(NewTikTok(cfg.TikTok, deps))
	return r
}

// NewEmptyRegistry creates a registry without adapters, for tests.
func NewEmptyRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry, replacing any previous adapter
// with the same id.
func (r *Registry) Register(p Provider) {
	if _, exists := r.providers[p.ID()]; !exists {
		r.order = append(r.order, p.ID())
	}
	r.providers[p.ID()] = p
}

// Get looks up a provider by id.
func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// IDs returns the registered provider ids in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}
