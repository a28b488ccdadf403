package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/RicardoRB/socialstats/internal/config"
	"github.com/RicardoRB/socialstats/internal/domain"
)

// youtubeMetricKeys maps YouTube Analytics column names onto normalized
// metric keys.
var youtubeMetricKeys = map[string]string{
	"views":             domain.MetricViews,
	"likes":             domain.MetricLikes,
	"subscribersGained": domain.MetricSubscribers,
	"impressions":       domain.MetricImpressions,
}

// YouTube syncs daily channel analytics through the YouTube Analytics
// reports API.
type YouTube struct {
	base
}

func NewYouTube(cfg config.ProviderConfig, deps Deps) *YouTube {
	return &YouTube{base: newBase(domain.ProviderYouTube, cfg, deps)}
}

func (y *YouTube) ID() string {
	return domain.ProviderYouTube
}

func (y *YouTube) OAuth() OAuthTraits {
	return OAuthTraits{OfflineAccess: true}
}

func (y *YouTube) RefreshTokenIfNeeded(ctx context.Context, account *domain.SocialAccount) (string, error) {
	return y.refreshTokenIfNeeded(ctx, account, refreshOptions{})
}

type youtubeReport struct {
	ColumnHeaders []struct {
		Name string `json:"name"`
	} `json:"columnHeaders"`
	Rows [][]any `json:"rows"`
}

// FetchMetrics pulls a day-dimensioned report for the authenticated channel.
// Column positions come from the response header row, not from assumptions
// about ordering.
func (y *YouTube) FetchMetrics(ctx context.Context, account *domain.SocialAccount, from, to time.Time) ([]domain.MetricPoint, error) {
	query := url.Values{}
	query.Set("ids", "channel==MINE")
	query.Set("startDate", dateString(from))
	query.Set("endDate", dateString(to))
	query.Set("metrics", "views,likes,subscribersGained,impressions")
	query.Set("dimensions", "day")

	var report youtubeReport
	reportURL := fmt.Sprintf("%s/v2/reports?%s", y.cfg.APIBaseURL, query.Encode())
	if err := y.getJSON(ctx, reportURL, account.AccessToken, &report); err != nil {
		return nil, fmt.Errorf("youtube analytics report failed: %w", err)
	}

	dayIdx := -1
	for i, h := range report.ColumnHeaders {
		if h.Name == "day" {
			dayIdx = i
			break
		}
	}
	if dayIdx < 0 {
		return nil, fmt.Errorf("youtube analytics report is missing the day dimension")
	}

	var points []domain.MetricPoint
	for _, row := range report.Rows {
		if dayIdx >= len(row) {
			continue
		}
		date, ok := row[dayIdx].(string)
		if !ok {
			continue
		}
		for i, h := range report.ColumnHeaders {
			key, mapped := youtubeMetricKeys[h.Name]
			if !mapped || i >= len(row) {
				continue
			}
			value, ok := toFloat(row[i])
			if !ok {
				continue
			}
			points = append(points, domain.MetricPoint{
				MetricDate: date,
				MetricKey:  key,
				Value:      value,
			})
		}
	}
	return points, nil
}
