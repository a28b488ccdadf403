package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/RicardoRB/socialstats/internal/config"
	"github.com/RicardoRB/socialstats/internal/domain"
	"github.com/RicardoRB/socialstats/internal/oauth"
)

// stubAccounts records repository calls so adapter tests can assert on what
// got persisted without a database.
type stubAccounts struct {
	upserted     []*domain.SocialAccount
	tokenUpdates []tokenUpdate
	upsertErr    error
}

type tokenUpdate struct {
	accountID    string
	accessToken  string
	refreshToken *string
	expiresAt    *time.Time
}

func (s *stubAccounts) Upsert(_ context.Context, account *domain.SocialAccount) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	account.ID = "acc-1"
	account.ConnectedAt = time.Now()
	s.upserted = append(s.upserted, account)
	return nil
}

func (s *stubAccounts) ListByUser(context.Context, string) ([]*domain.SocialAccount, error) {
	return nil, nil
}

func (s *stubAccounts) ListByUserAndProvider(context.Context, string, string) ([]*domain.SocialAccount, error) {
	return nil, nil
}

func (s *stubAccounts) UpdateTokens(_ context.Context, accountID, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	s.tokenUpdates = append(s.tokenUpdates, tokenUpdate{
		accountID:    accountID,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		expiresAt:    expiresAt,
	})
	return nil
}

func (s *stubAccounts) UpdateLastSynced(context.Context, string, time.Time) error {
	return nil
}

func testDeps(accounts *stubAccounts) Deps {
	return Deps{
		Exchanger: oauth.NewExchanger("https://app.example.com", http.DefaultClient),
		Accounts:  accounts,
		Client:    http.DefaultClient,
	}
}

func testProviderConfig(apiURL, tokenURL string) config.ProviderConfig {
	return config.ProviderConfig{
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		AuthEndpoint:  "https://provider.example.com/authorize",
		TokenEndpoint: tokenURL,
		Scope:         "read",
		APIBaseURL:    apiURL,
	}
}

func testProvidersConfig() config.ProvidersConfig {
	return config.ProvidersConfig{
		YouTube:   testProviderConfig("https://yt.example.com", "https://yt.example.com/token"),
		X:         testProviderConfig("https://x.example.com", "https://x.example.com/token"),
		Instagram: testProviderConfig("https://ig.example.com", "https://ig.example.com/token"),
		TikTok:    testProviderConfig("https://tt.example.com", "https://tt.example.com/token"),
	}
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
