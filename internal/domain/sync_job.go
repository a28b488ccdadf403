package domain

import "time"

// SyncJobStatus is the lifecycle state of one synchronization attempt.
// A job never transitions backward.
type SyncJobStatus string

const (
	SyncJobRunning   SyncJobStatus = "running"
	SyncJobCompleted SyncJobStatus = "completed"
	SyncJobFailed    SyncJobStatus = "failed"
)

// SyncJob tracks one synchronization attempt for one account. At most one
// job per account may be running with a null finished_at; rows are retained
// as an audit trail.
type SyncJob struct {
	ID              string        `json:"id" db:"id"`
	SocialAccountID string        `json:"social_account_id" db:"social_account_id"`
	Provider        string        `json:"provider" db:"provider"`
	Status          SyncJobStatus `json:"status" db:"status"`
	StartedAt       time.Time     `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time    `json:"finished_at" db:"finished_at"`
	LastError       *string       `json:"last_error" db:"last_error"`
}
