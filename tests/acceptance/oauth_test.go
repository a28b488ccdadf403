package acceptance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/RicardoRB/socialstats/internal/dto"
)

// startAuth runs the start leg of the connection flow and returns the
// provider authorization URL from the 302 Location header.
func (s *Suite) startAuth(userID, provider string) *url.URL {
	req, _ := http.NewRequest("GET", s.BaseURL+"/api/auth/"+provider+"/start", nil)
	req.Header.Set("Authorization", s.sessionToken(userID))

	resp, err := noRedirectClient().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	s.Require().NoError(err)
	return location
}

func (s *Suite) TestStartAuth_RedirectsToProvider() {
	location := s.startAuth("user-1", "youtube")

	s.Contains(location.String(), s.Providers.URL()+"/authorize")

	query := location.Query()
	s.Equal("test-client", query.Get("client_id"))
	s.Equal("code", query.Get("response_type"))
	s.NotEmpty(query.Get("state"))
	s.Contains(query.Get("redirect_uri"), "/api/auth/youtube/callback")
}

func (s *Suite) TestStartAuth_UnsupportedProvider() {
	req, _ := http.NewRequest("GET", s.BaseURL+"/api/auth/myspace/start", nil)
	req.Header.Set("Authorization", s.sessionToken("user-1"))

	resp, err := noRedirectClient().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestStartAuth_NoToken() {
	resp, err := noRedirectClient().Get(s.BaseURL + "/api/auth/youtube/start")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestCallback_ConnectsAccount() {
	location := s.startAuth("user-1", "youtube")
	state := location.Query().Get("state")
	s.Require().NotEmpty(state)

	callbackURL := s.BaseURL + "/api/auth/youtube/callback?code=test-code&state=" + url.QueryEscape(state)
	req, _ := http.NewRequest("GET", callbackURL, nil)
	req.Header.Set("Authorization", s.sessionToken("user-1"))

	resp, err := noRedirectClient().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/dashboard?connected=y", resp.Header.Get("Location"))

	accounts, err := s.Repositories.Accounts.ListByUser(context.Background(), "user-1")
	s.Require().NoError(err)
	s.Require().Len(accounts, 1)
	s.Equal("youtube", accounts[0].Provider)
	s.Equal("chan-1", accounts[0].ProviderUserID)
	s.Equal("provider-access-token", accounts[0].AccessToken)
	s.Require().NotNil(accounts[0].RefreshToken)
	s.Equal("provider-refresh-token", *accounts[0].RefreshToken)
	s.NotNil(accounts[0].TokenExpiresAt)
}

func (s *Suite) TestCallback_ReplayedState() {
	location := s.startAuth("user-1", "youtube")
	state := location.Query().Get("state")

	callbackURL := s.BaseURL + "/api/auth/youtube/callback?code=test-code&state=" + url.QueryEscape(state)

	req, _ := http.NewRequest("GET", callbackURL, nil)
	req.Header.Set("Authorization", s.sessionToken("user-1"))
	first, err := noRedirectClient().Do(req)
	s.Require().NoError(err)
	first.Body.Close()
	s.Require().Equal(http.StatusFound, first.StatusCode)

	req, _ = http.NewRequest("GET", callbackURL, nil)
	req.Header.Set("Authorization", s.sessionToken("user-1"))
	second, err := noRedirectClient().Do(req)
	s.Require().NoError(err)
	defer second.Body.Close()

	s.Equal(http.StatusBadRequest, second.StatusCode)

	var errResp dto.ErrorResponse
	json.NewDecoder(second.Body).Decode(&errResp)
	s.Equal("State parameter already used", errResp.Message)
}

func (s *Suite) TestCallback_StateFromAnotherUser() {
	location := s.startAuth("user-1", "youtube")
	state := location.Query().Get("state")

	callbackURL := s.BaseURL + "/api/auth/youtube/callback?code=test-code&state=" + url.QueryEscape(state)
	req, _ := http.NewRequest("GET", callbackURL, nil)
	req.Header.Set("Authorization", s.sessionToken("user-2"))

	resp, err := noRedirectClient().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestCallback_MissingCode() {
	req, _ := http.NewRequest("GET", s.BaseURL+"/api/auth/youtube/callback?state=whatever", nil)
	req.Header.Set("Authorization", s.sessionToken("user-1"))

	resp, err := noRedirectClient().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestCallback_ProviderDenied() {
	req, _ := http.NewRequest("GET", s.BaseURL+"/api/auth/youtube/callback?error=access_denied", nil)
	req.Header.Set("Authorization", s.sessionToken("user-1"))

	resp, err := noRedirectClient().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}
