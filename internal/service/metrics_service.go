package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/RicardoRB/socialstats/internal/repository"
)

// TimeSeriesPoint is one date bucket of the overview time series. It
// serializes flat, with the metric keys as siblings of the date:
// {"date": "2024-01-05", "views": 100, "likes": 5}.
type TimeSeriesPoint struct {
	Date   string
	Values map[string]float64
}

// MarshalJSON flattens the values map into the point object.
func (p TimeSeriesPoint) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(p.Values)+1)
	flat["date"] = p.Date
	for key, value := range p.Values {
		flat[key] = value
	}
	return json.Marshal(flat)
}

// MetricsOverview is the aggregated metrics payload for a user's window.
// Totals and ByProvider are empty objects rather than null when there is no
// data; dashboard clients index into them without guards.
type MetricsOverview struct {
	Totals     map[string]float64            `json:"totals"`
	ByProvider map[string]map[string]float64 `json:"byProvider"`
	TimeSeries []TimeSeriesPoint             `json:"timeSeries"`
}

// MetricsService aggregates stored metric points for dashboard consumption.
type MetricsService struct {
	metrics repository.MetricRepository
}

// NewMetricsService creates a new metrics service
func NewMetricsService(metrics repository.MetricRepository) *MetricsService {
	return &MetricsService{metrics: metrics}
}

// Overview aggregates the user's metrics over [fromDate, toDate].
func (s *MetricsService) Overview(ctx context.Context, userID, fromDate, toDate string) (*MetricsOverview, error) {
	rows, err := s.metrics.AggregateRange(ctx, userID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate metrics: %w", err)
	}
	return Aggregate(rows), nil
}

// Aggregate folds per-(date, key, provider) sums into totals, per-provider
// totals and a date-ordered time series. A SQL NULL sum counts as zero.
func Aggregate(rows []repository.MetricRow) *MetricsOverview {
	overview := &MetricsOverview{
		Totals:     make(map[string]float64),
		ByProvider: make(map[string]map[string]float64),
		TimeSeries: []TimeSeriesPoint{},
	}

	byDate := make(map[string]map[string]float64)
	for _, row := range rows {
		value := 0.0
		if row.Sum.Valid {
			value = row.Sum.Float64
		}

		overview.Totals[row.MetricKey] += value

		perProvider := overview.ByProvider[row.Provider]
		if perProvider == nil {
			perProvider = make(map[string]float64)
			overview.ByProvider[row.Provider] = perProvider
		}
		perProvider[row.MetricKey] += value

		perDate := byDate[row.MetricDate]
		if perDate == nil {
			perDate = make(map[string]float64)
			byDate[row.MetricDate] = perDate
		}
		perDate[row.MetricKey] += value
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	for _, date := range dates {
		overview.TimeSeries = append(overview.TimeSeries, TimeSeriesPoint{
			Date:   date,
			Values: byDate[date],
		})
	}

	return overview
}
