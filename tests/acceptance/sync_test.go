package acceptance

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RicardoRB/socialstats/internal/domain"
	"github.com/RicardoRB/socialstats/internal/dto"
	"github.com/RicardoRB/socialstats/internal/service"
)

// seedAccount links a connected account directly through the repository, as
// if the user had completed the OAuth flow earlier.
func (s *Suite) seedAccount(userID, provider, providerUserID string) *domain.SocialAccount {
	refresh := "provider-refresh-token"
	expires := time.Now().Add(time.Hour)

	account := &domain.SocialAccount{
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: providerUserID,
		DisplayName:    "Test Channel",
		AccessToken:    "provider-access-token",
		RefreshToken:   &refresh,
		TokenExpiresAt: &expires,
	}
	err := s.Repositories.Accounts.Upsert(context.Background(), account)
	s.Require().NoError(err)
	return account
}

func (s *Suite) triggerSync(userID, provider string) *http.Response {
	req, _ := http.NewRequest("POST", s.BaseURL+"/api/sync/"+provider, nil)
	req.Header.Set("Authorization", s.sessionToken(userID))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) TestSync_Success() {
	s.seedAccount("user-1", "youtube", "chan-1")

	resp := s.triggerSync("user-1", "youtube")
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var syncResp dto.SyncResponse
	err := json.NewDecoder(resp.Body).Decode(&syncResp)
	s.Require().NoError(err)

	s.Equal(service.SyncStatusCompleted, syncResp.Status)
	s.NotEmpty(syncResp.JobID)
	s.Require().Len(syncResp.Results, 1)
	s.Equal(service.SyncStatusCompleted, syncResp.Results[0].Status)

	accounts, err := s.Repositories.Accounts.ListByUser(context.Background(), "user-1")
	s.Require().NoError(err)
	s.Require().Len(accounts, 1)
	s.NotNil(accounts[0].LastSyncedAt, "sync should stamp last_synced_at")
}

func (s *Suite) TestSync_NoAccounts() {
	resp := s.triggerSync("user-1", "youtube")
	defer resp.Body.Close()

	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *Suite) TestSync_UnsupportedProvider() {
	resp := s.triggerSync("user-1", "myspace")
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestSync_NoToken() {
	resp, err := http.Post(s.BaseURL+"/api/sync/youtube", "application/json", nil)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestSync_InvalidDateRange() {
	s.seedAccount("user-1", "youtube", "chan-1")

	req, _ := http.NewRequest("POST", s.BaseURL+"/api/sync/youtube",
		strings.NewReader(`{"fromDate": "2024-02-01", "toDate": "2024-01-01"}`))
	req.Header.Set("Authorization", s.sessionToken("user-1"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestMetricsOverview_AfterSync() {
	s.seedAccount("user-1", "youtube", "chan-1")

	resp := s.triggerSync("user-1", "youtube")
	resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	overview := s.fetchOverview("user-1", "2024-01-01", "2024-01-07")

	s.Equal(float64(350), overview.Totals["views"])
	s.Equal(float64(12), overview.Totals["likes"])
	s.Equal(float64(2), overview.Totals["subscribers"])
	s.Equal(float64(1300), overview.Totals["impressions"])

	s.Require().Contains(overview.ByProvider, "youtube")
	s.Equal(float64(350), overview.ByProvider["youtube"]["views"])

	s.Require().Len(overview.TimeSeries, 2)
	s.Equal("2024-01-01", overview.TimeSeries[0]["date"])
	s.Equal(float64(100), overview.TimeSeries[0]["views"])
	s.Equal("2024-01-02", overview.TimeSeries[1]["date"])
	s.Equal(float64(250), overview.TimeSeries[1]["views"])
}

func (s *Suite) TestMetricsOverview_ResyncIsIdempotent() {
	s.seedAccount("user-1", "youtube", "chan-1")

	for i := 0; i < 2; i++ {
		resp := s.triggerSync("user-1", "youtube")
		resp.Body.Close()
		s.Require().Equal(http.StatusOK, resp.StatusCode)
	}

	overview := s.fetchOverview("user-1", "2024-01-01", "2024-01-07")
	s.Equal(float64(350), overview.Totals["views"], "re-sync should overwrite, not double-count")
}

func (s *Suite) TestMetricsOverview_EmptyWindow() {
	req, _ := http.NewRequest("GET", s.BaseURL+"/api/metrics/overview?from=2020-01-01&to=2020-01-07", nil)
	req.Header.Set("Authorization", s.sessionToken("user-1"))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Contains(resp.Header.Get("Cache-Control"), "s-maxage=60")

	body, _ := io.ReadAll(resp.Body)
	s.JSONEq(`{"totals": {}, "byProvider": {}, "timeSeries": []}`, string(body))
}

func (s *Suite) TestMetricsOverview_InvalidDate() {
	req, _ := http.NewRequest("GET", s.BaseURL+"/api/metrics/overview?from=01-01-2024", nil)
	req.Header.Set("Authorization", s.sessionToken("user-1"))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestMetricsOverview_ScopedToUser() {
	s.seedAccount("user-1", "youtube", "chan-1")

	resp := s.triggerSync("user-1", "youtube")
	resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	overview := s.fetchOverview("user-2", "2024-01-01", "2024-01-07")
	s.Empty(overview.Totals)
}

func (s *Suite) TestSocialAccounts_List() {
	s.seedAccount("user-1", "youtube", "chan-1")

	req, _ := http.NewRequest("GET", s.BaseURL+"/api/social-accounts", nil)
	req.Header.Set("Authorization", s.sessionToken("user-1"))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.NotContains(string(body), "provider-access-token", "tokens must never leave the server")

	var accounts []dto.SocialAccountResponse
	s.Require().NoError(json.Unmarshal(body, &accounts))
	s.Require().Len(accounts, 1)
	s.Equal("youtube", accounts[0].Provider)
	s.Equal("chan-1", accounts[0].ProviderUserID)
	s.Equal("Test Channel", accounts[0].DisplayName)
	s.NotEmpty(accounts[0].ConnectedAt)
	s.Nil(accounts[0].LastSyncedAt)
}

func (s *Suite) TestSocialAccounts_EmptyList() {
	req, _ := http.NewRequest("GET", s.BaseURL+"/api/social-accounts", nil)
	req.Header.Set("Authorization", s.sessionToken("user-1"))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var accounts []dto.SocialAccountResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&accounts))
	s.Empty(accounts)
}

// overviewPayload mirrors the overview JSON shape with time series points
// decoded as flat maps.
type overviewPayload struct {
	Totals     map[string]float64            `json:"totals"`
	ByProvider map[string]map[string]float64 `json:"byProvider"`
	TimeSeries []map[string]any              `json:"timeSeries"`
}

func (s *Suite) fetchOverview(userID, from, to string) overviewPayload {
	req, _ := http.NewRequest("GET", s.BaseURL+"/api/metrics/overview?from="+from+"&to="+to, nil)
	req.Header.Set("Authorization", s.sessionToken(userID))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var overview overviewPayload
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&overview))
	return overview
}
