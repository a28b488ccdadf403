package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrSyncInProgress is returned when a running sync job already exists
	// for the account, so a new one cannot be claimed
	ErrSyncInProgress = errors.New("sync already in progress for this account")
)
