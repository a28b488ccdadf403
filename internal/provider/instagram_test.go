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

func TestInstagramExchangeCodeAndSave(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		assert.Equal(t, "client-id", r.Form.Get("client_id"))
		w.Write([]byte(`{"access_token": "short-lived"}`))
	})
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "fb_exchange_token", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "short-lived", r.URL.Query().Get("fb_exchange_token"))
		w.Write([]byte(`{"access_token": "long-lived", "expires_in": 5184000}`))
	})
	mux.HandleFunc("/me/accounts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "long-lived", r.URL.Query().Get("access_token"))
		w.Write([]byte(`{"data": [{"id": "page-1"}, {"id": "page-2"}]}`))
	})
	mux.HandleFunc("/page-1", func(w http.ResponseWriter, r *http.Request) {
		// First page has no linked business account.
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/page-2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"instagram_business_account": {"id": "ig-77", "username": "brand", "profile_picture_url": "https://cdn.example.com/p.jpg"}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	accounts := &stubAccounts{}
	ig := NewInstagram(testProviderConfig(server.URL, server.URL+"/token"), testDeps(accounts))

	account, err := ig.ExchangeCodeAndSave(context.Background(), "user-1", "the-code", oauth.VerifyResult{IsValid: true})
	require.NoError(t, err)

	assert.Equal(t, domain.ProviderInstagram, account.Provider)
	assert.Equal(t, "ig-77", account.ProviderUserID)
	assert.Equal(t, "brand", account.DisplayName)
	assert.Equal(t, "https://cdn.example.com/p.jpg", account.AvatarURL)
	assert.Equal(t, "long-lived", account.AccessToken)
	assert.Nil(t, account.RefreshToken)
	require.NotNil(t, account.TokenExpiresAt)
	require.Len(t, accounts.upserted, 1)
}

func TestInstagramExchangeWithoutBusinessAccount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token": "short-lived"}`))
	})
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token": "long-lived"}`))
	})
	mux.HandleFunc("/me/accounts", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"id": "page-1"}]}`))
	})
	mux.HandleFunc("/page-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	ig := NewInstagram(testProviderConfig(server.URL, server.URL+"/token"), testDeps(&stubAccounts{}))

	_, err := ig.ExchangeCodeAndSave(context.Background(), "user-1", "the-code", oauth.VerifyResult{IsValid: true})
	require.ErrorIs(t, err, ErrIdentityUnresolvable)
}

func TestInstagramFetchMetricsMapsInsightKeys(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ig-77", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "followers_count", r.URL.Query().Get("fields"))
		w.Write([]byte(`{"followers_count": 321}`))
	})
	mux.HandleFunc("/ig-77/insights", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "impressions,reach,profile_views", r.URL.Query().Get("metric"))
		assert.Equal(t, "day", r.URL.Query().Get("period"))
		// end_time marks the exclusive end of the bucket.
		w.Write([]byte(`{
			"data": [
				{"name": "impressions", "values": [{"value": 40, "end_time": "2024-01-06T08:00:00+0000"}]},
				{"name": "reach", "values": [{"value": 30, "end_time": "2024-01-06T08:00:00+0000"}]},
				{"name": "profile_views", "values": [{"value": 10, "end_time": "2024-01-06T08:00:00+0000"}]},
				{"name": "website_clicks", "values": [{"value": 5, "end_time": "2024-01-06T08:00:00+0000"}]}
			]
		}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	ig := NewInstagram(testProviderConfig(server.URL, server.URL+"/token"), testDeps(&stubAccounts{}))
	ig.now = func() time.Time { return time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC) }
	account := &domain.SocialAccount{ID: "acc-1", ProviderUserID: "ig-77", AccessToken: "ig-token"}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	points, err := ig.FetchMetrics(context.Background(), account, from, to)
	require.NoError(t, err)

	// The follower snapshot is a current total, dated today rather than at
	// the window end.
	assert.Contains(t, points, domain.MetricPoint{MetricDate: "2024-01-09", MetricKey: domain.MetricSubscribers, Value: 321})
	assert.Contains(t, points, domain.MetricPoint{MetricDate: "2024-01-06", MetricKey: domain.MetricImpressions, Value: 40})
	assert.Contains(t, points, domain.MetricPoint{MetricDate: "2024-01-06", MetricKey: domain.MetricViews, Value: 30})
	assert.Contains(t, points, domain.MetricPoint{MetricDate: "2024-01-06", MetricKey: domain.MetricEngagements, Value: 10})
	// Unmapped insight names are dropped.
	require.Len(t, points, 4)
}

func TestInstagramFetchMetricsDegradesWhenInsightsFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ig-77", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"followers_count": 321}`))
	})
	mux.HandleFunc("/ig-77/insights", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "no data yet"}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	ig := NewInstagram(testProviderConfig(server.URL, server.URL+"/token"), testDeps(&stubAccounts{}))
	account := &domain.SocialAccount{ID: "acc-1", ProviderUserID: "ig-77", AccessToken: "ig-token"}

	points, err := ig.FetchMetrics(context.Background(), account, time.Now().AddDate(0, 0, -7), time.Now())
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, domain.MetricSubscribers, points[0].MetricKey)
}

func TestIGBucketDate(t *testing.T) {
	date, err := igBucketDate("2024-01-06T00:00:00+0000")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", date)

	date, err = igBucketDate("2024-01-06T08:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-06", date)

	_, err = igBucketDate("yesterday")
	require.Error(t, err)
}
