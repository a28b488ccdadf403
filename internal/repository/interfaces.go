package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/RicardoRB/socialstats/internal/domain"
)

// SocialAccountRepository defines methods for linked social account rows
type SocialAccountRepository interface {
	// Upsert inserts or updates an account keyed by
	// (user_id, provider, provider_user_id) and fills in ID/ConnectedAt.
	Upsert(ctx context.Context, account *domain.SocialAccount) error
	ListByUser(ctx context.Context, userID string) ([]*domain.SocialAccount, error)
	ListByUserAndProvider(ctx context.Context, userID, provider string) ([]*domain.SocialAccount, error)
	UpdateTokens(ctx context.Context, accountID, accessToken string, refreshToken *string, expiresAt *time.Time) error
	UpdateLastSynced(ctx context.Context, accountID string, syncedAt time.Time) error
}

// SyncJobRepository defines methods for sync job rows
type SyncJobRepository interface {
	// Claim atomically creates a running job for the account, or returns
	// ErrSyncInProgress when an unfinished running job already exists.
	Claim(ctx context.Context, accountID, provider string, startedAt time.Time) (*domain.SyncJob, error)
	MarkCompleted(ctx context.Context, jobID string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, jobID, lastError string, finishedAt time.Time) error
	GetByID(ctx context.Context, jobID string) (*domain.SyncJob, error)
}

// MetricRow is one aggregated metrics row: the per-(date, key, provider) sum
// over the requested window. Sum is nullable at the SQL level.
type MetricRow struct {
	MetricDate string
	MetricKey  string
	Provider   string
	Sum        sql.NullFloat64
}

// MetricRepository defines methods for metric point rows
type MetricRepository interface {
	// UpsertBatch writes points keyed by
	// (social_account_id, provider, metric_key, metric_date); re-syncing a
	// day overwrites the stored value.
	UpsertBatch(ctx context.Context, accountID, provider, userID string, points []domain.MetricPoint) error
	AggregateRange(ctx context.Context, userID, fromDate, toDate string) ([]MetricRow, error)
}

// SocialProviderRepository maintains the social_providers reference table
// that sync job rows point at.
type SocialProviderRepository interface {
	Ensure(ctx context.Context, id, displayName string) error
}
