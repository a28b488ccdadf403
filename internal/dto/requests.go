package dto

// SyncRequest is the optional body of a sync trigger. Dates are ISO
// calendar dates; when absent the server defaults to the trailing week.
type SyncRequest struct {
	FromDate string `json:"fromDate" binding:"omitempty,datetime=2006-01-02"`
	ToDate   string `json:"toDate" binding:"omitempty,datetime=2006-01-02"`
}

// SyncResponse reports the outcome of a sync trigger across all of the
// user's accounts for the provider.
type SyncResponse struct {
	JobID   string        `json:"jobId,omitempty"`
	Status  string        `json:"status"`
	Results []SyncOutcome `json:"results"`
}

// SyncOutcome is the per-account result inside a SyncResponse.
type SyncOutcome struct {
	AccountID string `json:"accountId"`
	JobID     string `json:"jobId,omitempty"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SocialAccountResponse is a linked account with credentials stripped.
type SocialAccountResponse struct {
	ID             string  `json:"id"`
	Provider       string  `json:"provider"`
	ProviderUserID string  `json:"providerUserId"`
	DisplayName    string  `json:"displayName"`
	AvatarURL      string  `json:"avatarUrl,omitempty"`
	ConnectedAt    string  `json:"connectedAt"`
	LastSyncedAt   *string `json:"lastSyncedAt"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
