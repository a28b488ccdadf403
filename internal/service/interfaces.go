package service

import (
	"context"
	"time"

	"github.com/RicardoRB/socialstats/internal/dto"
)

// OAuthFlow defines methods for the provider connection flow
type OAuthFlow interface {
	StartAuth(ctx context.Context, providerID, userID, redirectTo string) (string, error)
	HandleCallback(ctx context.Context, providerID, userID, code, state string) (*CallbackResult, error)
}

// SyncRunner defines methods for triggering metric syncs
type SyncRunner interface {
	Run(ctx context.Context, userID, providerID string, from, to time.Time) ([]SyncResult, error)
}

// MetricsReader defines methods for reading aggregated metrics
type MetricsReader interface {
	Overview(ctx context.Context, userID, fromDate, toDate string) (*MetricsOverview, error)
}

// AccountLister defines methods for listing linked accounts
type AccountLister interface {
	List(ctx context.Context, userID string) ([]dto.SocialAccountResponse, error)
}
