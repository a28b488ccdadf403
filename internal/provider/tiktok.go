package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/RicardoRB/socialstats/internal/config"
	"github.com/RicardoRB/socialstats/internal/domain"
	"github.com/RicardoRB/socialstats/internal/oauth"
)

// TikTok syncs account-level counters through the TikTok open API. The API
// only exposes current totals, so each sync records snapshots dated today
// rather than a daily series.
type TikTok struct {
	base
}

func NewTikTok(cfg config.ProviderConfig, deps Deps) *TikTok {
	return &TikTok{base: newBase(domain.ProviderTikTok, cfg, deps)}
}

func (t *TikTok) ID() string {
	return domain.ProviderTikTok
}

func (t *TikTok) OAuth() OAuthTraits {
	return OAuthTraits{ClientKeyParam: true}
}

func (t *TikTok) RefreshTokenIfNeeded(ctx context.Context, account *domain.SocialAccount) (string, error) {
	return t.refreshTokenIfNeeded(ctx, account, refreshOptions{
		exchange: oauth.ExchangeOptions{ClientKeyParam: true},
	})
}

type tiktokUserInfo struct {
	Data struct {
		User struct {
			OpenID        string   `json:"open_id"`
			DisplayName   string   `json:"display_name"`
			AvatarURL     string   `json:"avatar_url_100"`
			FollowerCount *float64 `json:"follower_count"`
			LikesCount    *float64 `json:"likes_count"`
		} `json:"user"`
	} `json:"data"`
}

// ExchangeCodeAndSave trades the code for tokens and resolves the identity
// through the user info endpoint, which is also where the open_id lives.
func (t *TikTok) ExchangeCodeAndSave(ctx context.Context, userID, code string, verified oauth.VerifyResult) (*domain.SocialAccount, error) {
	tokens, err := t.exchanger.ExchangeCode(ctx, t.cfg, t.id, code, oauth.ExchangeOptions{ClientKeyParam: true})
	if err != nil {
		return nil, fmt.Errorf("tiktok code exchange failed: %w", err)
	}

	var info tiktokUserInfo
	infoURL := t.cfg.APIBaseURL + "/v2/user/info/?fields=open_id,display_name,avatar_url_100"
	if err := t.getJSON(ctx, infoURL, tokens.AccessToken, &info); err != nil {
		return nil, fmt.Errorf("%w: failed to fetch tiktok user info: %v", ErrIdentityUnresolvable, err)
	}
	if info.Data.User.OpenID == "" {
		return nil, fmt.Errorf("%w: tiktok user info response had no open_id", ErrIdentityUnresolvable)
	}

	account := &domain.SocialAccount{
		UserID:         userID,
		Provider:       t.id,
		ProviderUserID: info.Data.User.OpenID,
		DisplayName:    info.Data.User.DisplayName,
		AvatarURL:      info.Data.User.AvatarURL,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   optionalString(tokens.RefreshToken),
		TokenExpiresAt: expiryFromSeconds(tokens.ExpiresIn),
	}
	if err := t.accounts.Upsert(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save tiktok account: %w", err)
	}
	return account, nil
}

// FetchMetrics snapshots follower and like totals. The counters are current
// values, so the points are dated today regardless of the requested window.
// A field the API leaves out produces no point rather than a zero.
func (t *TikTok) FetchMetrics(ctx context.Context, account *domain.SocialAccount, from, to time.Time) ([]domain.MetricPoint, error) {
	var info tiktokUserInfo
	infoURL := t.cfg.APIBaseURL + "/v2/user/info/?fields=follower_count,likes_count"
	if err := t.getJSON(ctx, infoURL, account.AccessToken, &info); err != nil {
		return nil, fmt.Errorf("tiktok user info failed: %w", err)
	}

	date := dateString(t.now())
	var points []domain.MetricPoint
	if info.Data.User.FollowerCount != nil {
		points = append(points, domain.MetricPoint{
			MetricDate: date,
			MetricKey:  domain.MetricSubscribers,
			Value:      *info.Data.User.FollowerCount,
		})
	}
	if info.Data.User.LikesCount != nil {
		points = append(points, domain.MetricPoint{
			MetricDate: date,
			MetricKey:  domain.MetricLikes,
			Value:      *info.Data.User.LikesCount,
		})
	}
	return points, nil
}
