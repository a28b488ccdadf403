package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/RicardoRB/socialstats/internal/domain"
	"github.com/RicardoRB/socialstats/pkg/database"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// syncJobRepository implements SyncJobRepository interface
type syncJobRepository struct {
	db *database.Postgres
}

// NewSyncJobRepository creates a new sync job repository
func NewSyncJobRepository(db *database.Postgres) SyncJobRepository {
	return &syncJobRepository{db: db}
}

// Claim creates a running job for the account unless one is already in
// flight. The guard is a single conditional insert backed by a partial unique
// index on running jobs, so claiming is atomic rather than check-then-act.
func (r *syncJobRepository) Claim(ctx context.Context, accountID, provider string, startedAt time.Time) (*domain.SyncJob, error) {
	query := `
		INSERT INTO sync_jobs (id, social_account_id, provider, status, started_at)
		SELECT $1, $2, $3, 'running', $4
		WHERE NOT EXISTS (
			SELECT 1 FROM sync_jobs
			WHERE social_account_id = $2 AND status = 'running' AND finished_at IS NULL
		)
		RETURNING id
	`

	job := &domain.SyncJob{
		ID:              uuid.New().String(),
		SocialAccountID: accountID,
		Provider:        provider,
		Status:          domain.SyncJobRunning,
		StartedAt:       startedAt,
	}

	err := r.db.DB.QueryRowContext(ctx, query, job.ID, accountID, provider, startedAt).Scan(&job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s already has a running job: %w", accountID, ErrSyncInProgress)
		}
		// Two claims racing past the NOT EXISTS both hit the partial
		// unique index; the loser sees a unique violation.
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return nil, fmt.Errorf("account %s already has a running job: %w", accountID, ErrSyncInProgress)
			}
		}
		return nil, fmt.Errorf("failed to claim sync job: %w", err)
	}

	return job, nil
}

// MarkCompleted transitions a job to completed
func (r *syncJobRepository) MarkCompleted(ctx context.Context, jobID string, finishedAt time.Time) error {
	query := `
		UPDATE sync_jobs
		SET status = 'completed', finished_at = $2
		WHERE id = $1
	`

	return r.finish(ctx, query, jobID, finishedAt)
}

// MarkFailed transitions a job to failed and records the error message
func (r *syncJobRepository) MarkFailed(ctx context.Context, jobID, lastError string, finishedAt time.Time) error {
	query := `
		UPDATE sync_jobs
		SET status = 'failed', last_error = $3, finished_at = $2
		WHERE id = $1
	`

	return r.finish(ctx, query, jobID, finishedAt, lastError)
}

func (r *syncJobRepository) finish(ctx context.Context, query, jobID string, finishedAt time.Time, extra ...any) error {
	args := append([]any{jobID, finishedAt}, extra...)

	result, err := r.db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update sync job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("sync job with id %s not found: %w", jobID, ErrNotFound)
	}

	return nil
}

// GetByID retrieves a sync job by ID
func (r *syncJobRepository) GetByID(ctx context.Context, jobID string) (*domain.SyncJob, error) {
	query := `
		SELECT id, social_account_id, provider, status, started_at, finished_at, last_error
		FROM sync_jobs
		WHERE id = $1
	`

	job := &domain.SyncJob{}
	var finishedAt sql.NullTime
	var lastError sql.NullString

	err := r.db.DB.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID,
		&job.SocialAccountID,
		&job.Provider,
		&job.Status,
		&job.StartedAt,
		&finishedAt,
		&lastError,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sync job with id %s not found: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get sync job: %w", err)
	}

	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	if lastError.Valid {
		job.LastError = &lastError.String
	}

	return job, nil
}
