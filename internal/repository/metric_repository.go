package repository

import (
	"context"
	"fmt"

	"github.com/RicardoRB/socialstats/internal/domain"
	"github.com/RicardoRB/socialstats/pkg/database"
	"github.com/google/uuid"
)

// metricRepository implements MetricRepository interface
type metricRepository struct {
	db *database.Postgres
}

// NewMetricRepository creates a new metric repository
func NewMetricRepository(db *database.Postgres) MetricRepository {
	return &metricRepository{db: db}
}

// UpsertBatch persists fetched metric points. The conflict key makes repeated
// syncs of the same day idempotent: the stored value is overwritten, never
// duplicated.
func (r *metricRepository) UpsertBatch(ctx context.Context, accountID, provider, userID string, points []domain.MetricPoint) error {
	query := `
		INSERT INTO metrics (id, social_account_id, provider, user_id, metric_date, metric_key, value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (social_account_id, provider, metric_key, metric_date)
		DO UPDATE SET value = EXCLUDED.value, user_id = EXCLUDED.user_id
	`

	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin metrics transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range points {
		_, err := tx.ExecContext(ctx, query,
			uuid.New().String(),
			accountID,
			provider,
			userID,
			p.MetricDate,
			p.MetricKey,
			p.Value,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert metric %s/%s: %w", p.MetricKey, p.MetricDate, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metrics: %w", err)
	}

	return nil
}

// AggregateRange returns per-(date, key, provider) sums for a user's metrics
// inside the inclusive [fromDate, toDate] window
func (r *metricRepository) AggregateRange(ctx context.Context, userID, fromDate, toDate string) ([]MetricRow, error) {
	query := `
		SELECT to_char(metric_date, 'YYYY-MM-DD'), metric_key, provider, SUM(value)
		FROM metrics
		WHERE user_id = $1 AND metric_date >= $2 AND metric_date <= $3
		GROUP BY metric_date, metric_key, provider
		ORDER BY metric_date, metric_key, provider
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate metrics: %w", err)
	}
	defer rows.Close()

	var result []MetricRow
	for rows.Next() {
		var row MetricRow
		if err := rows.Scan(&row.MetricDate, &row.MetricKey, &row.Provider, &row.Sum); err != nil {
			return nil, fmt.Errorf("failed to scan metric row: %w", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metric rows: %w", err)
	}

	return result, nil
}
