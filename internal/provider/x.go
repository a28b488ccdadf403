package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/RicardoRB/socialstats/internal/config"
	"github.com/RicardoRB/socialstats/internal/domain"
	"github.com/RicardoRB/socialstats/internal/oauth"
	"go.uber.org/zap"
)

// X syncs follower counts and per-tweet engagement through the X API v2.
// The tweets endpoint is paginated and aggressively rate limited, so
// FetchMetrics returns whatever it collected before a page fails instead of
// discarding the window.
type X struct {
	base
}

func NewX(cfg config.ProviderConfig, deps Deps) *X {
	return &X{base: newBase(domain.ProviderX, cfg, deps)}
}

func (x *X) ID() string {
	return domain.ProviderX
}

func (x *X) OAuth() OAuthTraits {
	return OAuthTraits{UsesPKCE: true, BasicAuthExchange: true}
}

func (x *X) AuthURL(st oauth.State) (string, error) {
	return x.authURL(st, oauth.AuthURLOptions{CodeChallenge: st.CodeChallenge})
}

func (x *X) RefreshTokenIfNeeded(ctx context.Context, account *domain.SocialAccount) (string, error) {
	return x.refreshTokenIfNeeded(ctx, account, refreshOptions{
		exchange:         oauth.ExchangeOptions{BasicAuth: true},
		swallowRateLimit: true,
	})
}

type xUserResponse struct {
	Data struct {
		ID            string `json:"id"`
		Username      string `json:"username"`
		PublicMetrics struct {
			FollowersCount float64 `json:"followers_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

type xTweetMetrics struct {
	ImpressionCount float64 `json:"impression_count"`
	RetweetCount    float64 `json:"retweet_count"`
	ReplyCount      float64 `json:"reply_count"`
	LikeCount       float64 `json:"like_count"`
	QuoteCount      float64 `json:"quote_count"`
}

type xTweetsResponse struct {
	Data []struct {
		CreatedAt        string        `json:"created_at"`
		PublicMetrics    xTweetMetrics `json:"public_metrics"`
		NonPublicMetrics xTweetMetrics `json:"non_public_metrics"`
	} `json:"data"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

// ExchangeCodeAndSave trades the PKCE-bound code for tokens and resolves the
// account identity. The token response carries no id_token, so identity
// comes from a follow-up /users/me call.
func (x *X) ExchangeCodeAndSave(ctx context.Context, userID, code string, verified oauth.VerifyResult) (*domain.SocialAccount, error) {
	tokens, err := x.exchanger.ExchangeCode(ctx, x.cfg, x.id, code, oauth.ExchangeOptions{
		BasicAuth:    true,
		CodeVerifier: verified.CodeVerifier,
	})
	if err != nil {
		return nil, fmt.Errorf("x code exchange failed: %w", err)
	}

	var me xUserResponse
	if err := x.getJSON(ctx, x.cfg.APIBaseURL+"/2/users/me", tokens.AccessToken, &me); err != nil {
		return nil, fmt.Errorf("%w: failed to fetch x user info: %v", ErrIdentityUnresolvable, err)
	}
	if me.Data.ID == "" {
		return nil, fmt.Errorf("%w: x user info response had no id", ErrIdentityUnresolvable)
	}

	account := &domain.SocialAccount{
		UserID:         userID,
		Provider:       x.id,
		ProviderUserID: me.Data.ID,
		DisplayName:    me.Data.Username,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   optionalString(tokens.RefreshToken),
		TokenExpiresAt: expiryFromSeconds(tokens.ExpiresIn),
	}
	if err := x.accounts.Upsert(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save x account: %w", err)
	}
	return account, nil
}

// FetchMetrics records a follower snapshot for the window end plus
// per-tweet impressions and engagements bucketed by tweet creation date.
// Pagination stops once a page reaches past the window start or a page
// request fails; collected points survive either stop.
func (x *X) FetchMetrics(ctx context.Context, account *domain.SocialAccount, from, to time.Time) ([]domain.MetricPoint, error) {
	var points []domain.MetricPoint

	var me xUserResponse
	userURL := fmt.Sprintf("%s/2/users/%s?user.fields=public_metrics", x.cfg.APIBaseURL, account.ProviderUserID)
	if err := x.getJSON(ctx, userURL, account.AccessToken, &me); err != nil {
		x.logger.Warn("failed to fetch x follower count", zap.Error(err))
	} else {
		points = append(points, domain.MetricPoint{
			MetricDate: dateString(to),
			MetricKey:  domain.MetricFollowers,
			Value:      me.Data.PublicMetrics.FollowersCount,
		})
	}

	fromDate := dateString(from)
	byDate := make(map[string]map[string]float64)
	nextToken := ""
	for {
		query := url.Values{}
		query.Set("start_time", from.UTC().Format(time.RFC3339))
		query.Set("end_time", to.UTC().Format(time.RFC3339))
		query.Set("tweet.fields", "public_metrics,non_public_metrics,created_at")
		query.Set("max_results", "100")
		if nextToken != "" {
			query.Set("pagination_token", nextToken)
		}

		var page xTweetsResponse
		tweetsURL := fmt.Sprintf("%s/2/users/%s/tweets?%s", x.cfg.APIBaseURL, account.ProviderUserID, query.Encode())
		if err := x.getJSON(ctx, tweetsURL, account.AccessToken, &page); err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.IsRateLimited() {
				x.logger.Warn("x tweets endpoint rate limited, keeping partial results")
			} else {
				x.logger.Warn("failed to fetch x tweets page, keeping partial results", zap.Error(err))
			}
			break
		}
		if len(page.Data) == 0 {
			break
		}

		oldest := ""
		for _, tweet := range page.Data {
			if len(tweet.CreatedAt) < 10 {
				continue
			}
			date := tweet.CreatedAt[:10]
			if oldest == "" || date < oldest {
				oldest = date
			}
			if date < fromDate {
				continue
			}
			impressions := tweet.NonPublicMetrics.ImpressionCount
			if impressions == 0 {
				impressions = tweet.PublicMetrics.ImpressionCount
			}
			engagements := tweet.PublicMetrics.RetweetCount +
				tweet.PublicMetrics.ReplyCount +
				tweet.PublicMetrics.LikeCount +
				tweet.PublicMetrics.QuoteCount
			day := byDate[date]
			if day == nil {
				day = make(map[string]float64)
				byDate[date] = day
			}
			day[domain.MetricImpressions] += impressions
			day[domain.MetricEngagements] += engagements
		}

		nextToken = page.Meta.NextToken
		if nextToken == "" {
			break
		}
		if oldest != "" && oldest < fromDate {
			break
		}
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	for _, date := range dates {
		points = append(points,
			domain.MetricPoint{MetricDate: date, MetricKey: domain.MetricImpressions, Value: byDate[date][domain.MetricImpressions]},
			domain.MetricPoint{MetricDate: date, MetricKey: domain.MetricEngagements, Value: byDate[date][domain.MetricEngagements]},
		)
	}
	return points, nil
}
