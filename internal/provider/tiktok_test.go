package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RicardoRB/socialstats/internal/domain"
	"github.com/RicardoRB/socialstats/internal/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTikTokExchangeCodeAndSave(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		assert.Equal(t, "client-id", r.Form.Get("client_key"))
		assert.Empty(t, r.Form.Get("client_id"))
		w.Write([]byte(`{"access_token": "tt-access", "refresh_token": "tt-refresh", "expires_in": 86400}`))
	})
	mux.HandleFunc("/v2/user/info/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tt-access", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data": {"user": {"open_id": "open-5", "display_name": "creator", "avatar_url_100": "https://cdn.example.com/a.jpg"}}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	accounts := &stubAccounts{}
	tk := NewTikTok(testProviderConfig(server.URL, server.URL+"/token"), testDeps(accounts))

	account, err := tk.ExchangeCodeAndSave(context.Background(), "user-1", "the-code", oauth.VerifyResult{IsValid: true})
	require.NoError(t, err)

	assert.Equal(t, domain.ProviderTikTok, account.Provider)
	assert.Equal(t, "open-5", account.ProviderUserID)
	assert.Equal(t, "creator", account.DisplayName)
	assert.Equal(t, "https://cdn.example.com/a.jpg", account.AvatarURL)
	require.NotNil(t, account.RefreshToken)
	assert.Equal(t, "tt-refresh", *account.RefreshToken)
	require.Len(t, accounts.upserted, 1)
}

func TestTikTokExchangeWithoutOpenID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token": "tt-access"}`))
	})
	mux.HandleFunc("/v2/user/info/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"user": {}}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tk := NewTikTok(testProviderConfig(server.URL, server.URL+"/token"), testDeps(&stubAccounts{}))

	_, err := tk.ExchangeCodeAndSave(context.Background(), "user-1", "the-code", oauth.VerifyResult{IsValid: true})
	require.ErrorIs(t, err, ErrIdentityUnresolvable)
}

func TestTikTokFetchMetricsSnapshots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/user/info/", r.URL.Path)
		assert.Equal(t, "follower_count,likes_count", r.URL.Query().Get("fields"))
		w.Write([]byte(`{"data": {"user": {"follower_count": 1500, "likes_count": 42000}}}`))
	}))
	defer server.Close()

	tk := NewTikTok(testProviderConfig(server.URL, server.URL+"/token"), testDeps(&stubAccounts{}))
	tk.now = func() time.Time { return time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC) }
	account := &domain.SocialAccount{ID: "acc-1", ProviderUserID: "open-5", AccessToken: "tt-token"}

	// The counters are current totals: even a historical window gets points
	// dated today, never backdated onto the window end.
	to := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	points, err := tk.FetchMetrics(context.Background(), account, to.AddDate(0, 0, -7), to)
	require.NoError(t, err)

	require.Len(t, points, 2)
	assert.Contains(t, points, domain.MetricPoint{MetricDate: "2024-01-09", MetricKey: domain.MetricSubscribers, Value: 1500})
	assert.Contains(t, points, domain.MetricPoint{MetricDate: "2024-01-09", MetricKey: domain.MetricLikes, Value: 42000})
}

func TestTikTokFetchMetricsSkipsMissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"user": {"follower_count": 0}}}`))
	}))
	defer server.Close()

	tk := NewTikTok(testProviderConfig(server.URL, server.URL+"/token"), testDeps(&stubAccounts{}))
	account := &domain.SocialAccount{ID: "acc-1", ProviderUserID: "open-5", AccessToken: "tt-token"}

	points, err := tk.FetchMetrics(context.Background(), account, time.Now().AddDate(0, 0, -7), time.Now())
	require.NoError(t, err)

	// A reported zero is still a point; an absent field is not.
	require.Len(t, points, 1)
	assert.Equal(t, domain.MetricSubscribers, points[0].MetricKey)
	assert.Zero(t, points[0].Value)
}

func TestTikTokFetchMetricsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tk := NewTikTok(testProviderConfig(server.URL, server.URL+"/token"), testDeps(&stubAccounts{}))
	account := &domain.SocialAccount{ID: "acc-1", ProviderUserID: "open-5", AccessToken: "tt-token"}

	_, err := tk.FetchMetrics(context.Background(), account, time.Now().AddDate(0, 0, -7), time.Now())
	require.Error(t, err)
}

func TestRegistryContainsAllProviders(t *testing.T) {
	deps := testDeps(&stubAccounts{})
	registry := NewRegistry(testProvidersConfig(), deps)

	assert.Equal(t, []string{"youtube", "x", "instagram", "tiktok"}, registry.IDs())

	for _, id := range registry.IDs() {
		p, ok := registry.Get(id)
		require.True(t, ok)
		assert.Equal(t, id, p.ID())
	}

	_, ok := registry.Get("myspace")
	assert.False(t, ok)
}

func TestRegistryCapabilities(t *testing.T) {
	registry := NewRegistry(testProvidersConfig(), testDeps(&stubAccounts{}))

	yt, _ := registry.Get(domain.ProviderYouTube)
	_, refreshes := yt.(TokenRefresher)
	assert.True(t, refreshes)
	_, exchanges := yt.(CodeExchanger)
	assert.False(t, exchanges, "youtube identity comes from the id_token, not a custom exchange")

	x, _ := registry.Get(domain.ProviderX)
	_, buildsURL := x.(AuthURLBuilder)
	assert.True(t, buildsURL)
	assert.True(t, x.OAuth().UsesPKCE)
	assert.True(t, x.OAuth().BasicAuthExchange)

	ig, _ := registry.Get(domain.ProviderInstagram)
	_, refreshes = ig.(TokenRefresher)
	assert.False(t, refreshes, "long-lived graph tokens are not refreshable")

	tk, _ := registry.Get(domain.ProviderTikTok)
	assert.True(t, tk.OAuth().ClientKeyParam)
}
