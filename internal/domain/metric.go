package domain

// Canonical metric keys shared by all providers.
const (
	MetricViews       = "views"
	MetricLikes       = "likes"
	MetricImpressions = "impressions"
	MetricSubscribers = "subscribers"
	MetricEngagements = "engagements"
	MetricFollowers   = "followers"
)

// MetricPoint is one (date, key, value) observation produced by a metrics
// fetcher. MetricDate is an ISO date string at day granularity.
type MetricPoint struct {
	MetricDate string  `json:"metric_date"`
	MetricKey  string  `json:"metric_key"`
	Value      float64 `json:"value"`
}
