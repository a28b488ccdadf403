package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/RicardoRB/socialstats/internal/dto"
	"github.com/RicardoRB/socialstats/internal/oauth"
	"github.com/RicardoRB/socialstats/internal/provider"
	"github.com/RicardoRB/socialstats/internal/service"
	"github.com/gin-gonic/gin"
)

// OAuthHandler handles the provider connection flow
type OAuthHandler struct {
	oauthService service.OAuthFlow
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(oauthService service.OAuthFlow) *OAuthHandler {
	return &OAuthHandler{oauthService: oauthService}
}

// Start redirects the user to the provider's authorization page
// @Summary Start provider connection
// @Description Mint a state token and redirect to the provider's OAuth consent page
// @Tags oauth
// @Param provider path string true "Provider id (youtube, x, instagram, tiktok)"
// @Param redirectTo query string false "Path to return to after connecting"
// @Success 302
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/{provider}/start [get]
func (h *OAuthHandler) Start(c *gin.Context) {
	providerID := c.Param("provider")
	userID := c.GetString("user_id")

	authURL, err := h.oauthService.StartAuth(c.Request.Context(), providerID, userID, c.Query("redirectTo"))
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedProvider) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Bad request",
				Message: "Unsupported provider: " + providerID,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to start provider connection",
		})
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the provider connection flow
// @Summary Provider OAuth callback
// @Description Verify the state, exchange the code and store the linked account
// @Tags oauth
// @Param provider path string true "Provider id"
// @Param code query string true "Authorization code"
// @Param state query string true "Signed state parameter"
// @Success 302
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/{provider}/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	providerID := c.Param("provider")
	userID := c.GetString("user_id")

	if errParam := c.Query("error"); errParam != "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Provider denied authorization: " + errParam,
		})
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Missing code or state parameter",
		})
		return
	}

	result, err := h.oauthService.HandleCallback(c.Request.Context(), providerID, userID, code, state)
	if err != nil {
		status, message := callbackErrorResponse(providerID, err)
		c.JSON(status, dto.ErrorResponse{
			Error:   http.StatusText(status),
			Message: message,
		})
		return
	}

	target := result.RedirectTo
	if u, err := url.Parse(target); err == nil {
		q := u.Query()
		q.Set("connected", "y")
		u.RawQuery = q.Encode()
		target = u.String()
	}
	c.Redirect(http.StatusFound, target)
}

// callbackErrorResponse maps callback failures onto status codes. Exchange
// and identity failures are the user's provider setup, not ours, so they
// come back as 400 with the provider's own error text where available.
func callbackErrorResponse(providerID string, err error) (int, string) {
	var exchErr *oauth.ExchangeError
	switch {
	case errors.Is(err, service.ErrUnsupportedProvider):
		return http.StatusBadRequest, "Unsupported provider: " + providerID
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusBadRequest, "Invalid or expired state parameter"
	case errors.Is(err, service.ErrStateReplayed):
		return http.StatusBadRequest, "State parameter already used"
	case errors.As(err, &exchErr):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, provider.ErrIdentityUnresolvable):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Failed to complete provider connection"
	}
}
