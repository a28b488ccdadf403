package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RicardoRB/socialstats/internal/domain"
	"github.com/RicardoRB/socialstats/internal/oauth"
	"github.com/RicardoRB/socialstats/internal/provider"
	"github.com/RicardoRB/socialstats/internal/repository"
	"go.uber.org/zap"
)

// NonceConsumer marks state nonces as used. Implemented by NonceGuard.
type NonceConsumer interface {
	Consume(ctx context.Context, nonce string, expiresAt time.Time) error
}

// OAuthService drives the provider connection flow: minting state-bound
// authorization URLs and turning callback codes into stored accounts.
type OAuthService struct {
	signer    *oauth.StateSigner
	exchanger *oauth.Exchanger
	registry  *provider.Registry
	accounts  repository.SocialAccountRepository
	nonces    NonceConsumer
	logger    *zap.Logger
}

// NewOAuthService creates a new OAuth service. nonces may be nil, which
// disables the replay guard.
func NewOAuthService(
	signer *oauth.StateSigner,
	exchanger *oauth.Exchanger,
	registry *provider.Registry,
	accounts repository.SocialAccountRepository,
	nonces NonceConsumer,
	logger *zap.Logger,
) *OAuthService {
	return &OAuthService{
		signer:    signer,
		exchanger: exchanger,
		registry:  registry,
		accounts:  accounts,
		nonces:    nonces,
		logger:    logger,
	}
}

// CallbackResult is the outcome of a successful provider callback.
type CallbackResult struct {
	Account    *domain.SocialAccount
	RedirectTo string
}

// StartAuth mints a state token bound to the user and returns the provider
// authorization URL to redirect them to.
func (s *OAuthService) StartAuth(_ context.Context, providerID, userID, redirectTo string) (string, error) {
	p, ok := s.registry.Get(providerID)
	if !ok {
		return "", ErrUnsupportedProvider
	}

	traits := p.OAuth()
	st, err := s.signer.Mint(userID, redirectTo, traits.UsesPKCE)
	if err != nil {
		return "", fmt.Errorf("failed to mint state: %w", err)
	}

	if builder, ok := p.(provider.AuthURLBuilder); ok {
		return builder.AuthURL(*st)
	}

	return oauth.BuildAuthURL(p.Config(), providerID, s.exchanger.RedirectURI(providerID), st.Value, oauth.AuthURLOptions{
		OfflineAccess:  traits.OfflineAccess,
		ClientKeyParam: traits.ClientKeyParam,
		CodeChallenge:  st.CodeChallenge,
	})
}

// HandleCallback verifies the returned state, consumes its nonce and
// exchanges the code for a stored account. The replay guard being
// unavailable downgrades to a warning: a signed, user-bound, short-lived
// state is still a strong credential without it.
func (s *OAuthService) HandleCallback(ctx context.Context, providerID, userID, code, state string) (*CallbackResult, error) {
	p, ok := s.registry.Get(providerID)
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	verified := s.signer.Verify(state, userID)
	if !verified.IsValid {
		return nil, ErrInvalidState
	}

	if s.nonces != nil {
		if err := s.nonces.Consume(ctx, verified.Nonce, verified.ExpiresAt); err != nil {
			if errors.Is(err, ErrStateReplayed) {
				return nil, err
			}
			s.logger.Warn("state replay guard unavailable, continuing",
				zap.String("provider", providerID), zap.Error(err))
		}
	}

	account, err := s.exchangeCode(ctx, p, userID, code, verified)
	if err != nil {
		return nil, err
	}

	s.logger.Info("social account connected",
		zap.String("provider", providerID),
		zap.String("user_id", userID),
		zap.String("account_id", account.ID))

	redirectTo := verified.RedirectTo
	if redirectTo == "" {
		redirectTo = "/dashboard"
	}
	return &CallbackResult{Account: account, RedirectTo: redirectTo}, nil
}

func (s *OAuthService) exchangeCode(ctx context.Context, p provider.Provider, userID, code string, verified oauth.VerifyResult) (*domain.SocialAccount, error) {
	if ex, ok := p.(provider.CodeExchanger); ok {
		return ex.ExchangeCodeAndSave(ctx, userID, code, verified)
	}

	traits := p.OAuth()
	tokens, err := s.exchanger.ExchangeCode(ctx, p.Config(), p.ID(), code, oauth.ExchangeOptions{
		BasicAuth:      traits.BasicAuthExchange,
		ClientKeyParam: traits.ClientKeyParam,
		CodeVerifier:   verified.CodeVerifier,
	})
	if err != nil {
		return nil, fmt.Errorf("%s code exchange failed: %w", p.ID(), err)
	}

	providerUserID := tokens.ProviderUserID
	if providerUserID == "" {
		// No id_token in the response; the account can still be linked,
		// just without a provider-side identity to dedupe on.
		providerUserID = "unknown"
	}

	var refreshToken *string
	if tokens.RefreshToken != "" {
		refreshToken = &tokens.RefreshToken
	}
	var expiresAt *time.Time
	if tokens.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	account := &domain.SocialAccount{
		UserID:         userID,
		Provider:       p.ID(),
		ProviderUserID: providerUserID,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: expiresAt,
	}
	if err := s.accounts.Upsert(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save %s account: %w", p.ID(), err)
	}
	return account, nil
}
