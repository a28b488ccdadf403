package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/RicardoRB/socialstats/internal/config"
	"github.com/RicardoRB/socialstats/internal/domain"
	"github.com/RicardoRB/socialstats/internal/oauth"
	"go.uber.org/zap"
)

// instagramMetricKeys maps Graph API insight names onto normalized metric
// keys. "reach" lands on views and "profile_views" on engagements so the
// aggregate surface stays comparable across providers.
var instagramMetricKeys = map[string]string{
	"impressions":   domain.MetricImpressions,
	"reach":         domain.MetricViews,
	"profile_views": domain.MetricEngagements,
}

// Instagram syncs Business Account insights through the Facebook Graph API.
// Connecting requires a Facebook page with a linked Instagram Business
// Account; plain consumer logins cannot be resolved to one.
type Instagram struct {
	base
}

func NewInstagram(cfg config.ProviderConfig, deps Deps) *Instagram {
	return &Instagram{base: newBase(domain.ProviderInstagram, cfg, deps)}
}

func (ig *Instagram) ID() string {
	return domain.ProviderInstagram
}

func (ig *Instagram) OAuth() OAuthTraits {
	return OAuthTraits{}
}

type igLongLivedToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type igPagesResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type igBusinessAccount struct {
	InstagramBusinessAccount *struct {
		ID                string `json:"id"`
		Username          string `json:"username"`
		ProfilePictureURL string `json:"profile_picture_url"`
	} `json:"instagram_business_account"`
}

type igProfile struct {
	FollowersCount *float64 `json:"followers_count"`
}

type igInsightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value   float64 `json:"value"`
			EndTime string  `json:"end_time"`
		} `json:"values"`
	} `json:"data"`
}

// ExchangeCodeAndSave trades the code for a short-lived token, upgrades it
// to a long-lived one and walks the user's Facebook pages until one has a
// linked Instagram Business Account.
func (ig *Instagram) ExchangeCodeAndSave(ctx context.Context, userID, code string, verified oauth.VerifyResult) (*domain.SocialAccount, error) {
	tokens, err := ig.exchanger.ExchangeCode(ctx, ig.cfg, ig.id, code, oauth.ExchangeOptions{})
	if err != nil {
		return nil, fmt.Errorf("instagram code exchange failed: %w", err)
	}

	query := url.Values{}
	query.Set("grant_type", "fb_exchange_token")
	query.Set("client_id", ig.cfg.ClientID)
	query.Set("client_secret", ig.cfg.ClientSecret)
	query.Set("fb_exchange_token", tokens.AccessToken)

	var longLived igLongLivedToken
	exchangeURL := fmt.Sprintf("%s/oauth/access_token?%s", ig.cfg.APIBaseURL, query.Encode())
	if err := ig.getJSON(ctx, exchangeURL, "", &longLived); err != nil {
		return nil, fmt.Errorf("instagram long-lived token exchange failed: %w", err)
	}

	var pages igPagesResponse
	pagesURL := fmt.Sprintf("%s/me/accounts?access_token=%s", ig.cfg.APIBaseURL, url.QueryEscape(longLived.AccessToken))
	if err := ig.getJSON(ctx, pagesURL, "", &pages); err != nil {
		return nil, fmt.Errorf("failed to list facebook pages: %w", err)
	}

	account := &domain.SocialAccount{
		UserID:         userID,
		Provider:       ig.id,
		AccessToken:    longLived.AccessToken,
		TokenExpiresAt: expiryFromSeconds(longLived.ExpiresIn),
	}
	for _, page := range pages.Data {
		var linked igBusinessAccount
		pageURL := fmt.Sprintf("%s/%s?fields=instagram_business_account{id,username,profile_picture_url}&access_token=%s",
			ig.cfg.APIBaseURL, page.ID, url.QueryEscape(longLived.AccessToken))
		if err := ig.getJSON(ctx, pageURL, "", &linked); err != nil {
			ig.logger.Warn("failed to inspect facebook page, trying next", zap.String("page_id", page.ID), zap.Error(err))
			continue
		}
		if linked.InstagramBusinessAccount != nil && linked.InstagramBusinessAccount.ID != "" {
			account.ProviderUserID = linked.InstagramBusinessAccount.ID
			account.DisplayName = linked.InstagramBusinessAccount.Username
			account.AvatarURL = linked.InstagramBusinessAccount.ProfilePictureURL
			break
		}
	}
	if account.ProviderUserID == "" {
		return nil, fmt.Errorf("%w: no facebook page with a linked instagram business account", ErrIdentityUnresolvable)
	}

	if err := ig.accounts.Upsert(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save instagram account: %w", err)
	}
	return account, nil
}

// FetchMetrics pulls a follower snapshot plus daily insights. The follower
// count is a current total and gets dated today, not at the window end.
// Either call failing degrades the result instead of aborting: the Graph API
// rejects insights for brand-new accounts with no data yet.
func (ig *Instagram) FetchMetrics(ctx context.Context, account *domain.SocialAccount, from, to time.Time) ([]domain.MetricPoint, error) {
	var points []domain.MetricPoint

	var profile igProfile
	profileURL := fmt.Sprintf("%s/%s?fields=followers_count&access_token=%s",
		ig.cfg.APIBaseURL, account.ProviderUserID, url.QueryEscape(account.AccessToken))
	if err := ig.getJSON(ctx, profileURL, "", &profile); err != nil {
		ig.logger.Warn("failed to fetch instagram follower count", zap.Error(err))
	} else if profile.FollowersCount != nil {
		points = append(points, domain.MetricPoint{
			MetricDate: dateString(ig.now()),
			MetricKey:  domain.MetricSubscribers,
			Value:      *profile.FollowersCount,
		})
	}

	query := url.Values{}
	query.Set("metric", "impressions,reach,profile_views")
	query.Set("period", "day")
	query.Set("since", fmt.Sprintf("%d", from.Unix()))
	query.Set("until", fmt.Sprintf("%d", to.Unix()))
	query.Set("access_token", account.AccessToken)

	var insights igInsightsResponse
	insightsURL := fmt.Sprintf("%s/%s/insights?%s", ig.cfg.APIBaseURL, account.ProviderUserID, query.Encode())
	if err := ig.getJSON(ctx, insightsURL, "", &insights); err != nil {
		ig.logger.Warn("failed to fetch instagram insights, keeping partial results", zap.Error(err))
		return points, nil
	}

	for _, series := range insights.Data {
		key, mapped := instagramMetricKeys[series.Name]
		if !mapped {
			continue
		}
		for _, value := range series.Values {
			date, err := igBucketDate(value.EndTime)
			if err != nil {
				ig.logger.Warn("skipping insight value with unparseable end_time",
					zap.String("end_time", value.EndTime), zap.Error(err))
				continue
			}
			points = append(points, domain.MetricPoint{
				MetricDate: date,
				MetricKey:  key,
				Value:      value.Value,
			})
		}
	}
	return points, nil
}

// igBucketDate converts a Graph API end_time, which marks the exclusive end
// of a day bucket, into the calendar date the bucket covers.
func igBucketDate(endTime string) (string, error) {
	t, err := time.Parse("2006-01-02T15:04:05-0700", endTime)
	if err != nil {
		t, err = time.Parse(time.RFC3339, endTime)
		if err != nil {
			return "", err
		}
	}
	return dateString(t.Add(-time.Second)), nil
}
