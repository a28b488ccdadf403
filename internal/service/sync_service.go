package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RicardoRB/socialstats/internal/domain"
	"github.com/RicardoRB/socialstats/internal/provider"
	"github.com/RicardoRB/socialstats/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Sync outcome statuses reported per account.
const (
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
	SyncStatusSkipped   = "skipped"
	SyncStatusError     = "error"
)

// providerDisplayNames feed the social_providers reference table.
var providerDisplayNames = map[string]string{
	domain.ProviderYouTube:   "YouTube",
	domain.ProviderX:         "X",
	domain.ProviderInstagram: "Instagram",
	domain.ProviderTikTok:    "TikTok",
}

// SyncResult is the outcome of syncing one account.
type SyncResult struct {
	AccountID string
	JobID     string
	Status    string
	Reason    string
	Error     string
}

// SyncService orchestrates metric syncs across a user's linked accounts.
// One account failing never aborts the others; each account gets its own
// job row and its own outcome.
type SyncService struct {
	registry  *provider.Registry
	accounts  repository.SocialAccountRepository
	jobs      repository.SyncJobRepository
	metrics   repository.MetricRepository
	providers repository.SocialProviderRepository
	throttle  time.Duration
	logger    *zap.Logger
	outcomes  metric.Int64Counter

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSyncService creates a new sync service. throttle is the fixed delay
// inserted before each account's provider calls.
func NewSyncService(
	registry *provider.Registry,
	repos *repository.Repositories,
	throttle time.Duration,
	logger *zap.Logger,
) *SyncService {
	outcomes, err := otel.Meter("socialstats/sync").Int64Counter("sync_account_outcomes_total",
		metric.WithDescription("Per-account sync outcomes by provider and status"))
	if err != nil {
		logger.Warn("failed to create sync outcome counter", zap.Error(err))
	}

	return &SyncService{
		registry:  registry,
		accounts:  repos.Accounts,
		jobs:      repos.Jobs,
		metrics:   repos.Metrics,
		providers: repos.Providers,
		throttle:  throttle,
		logger:    logger,
		outcomes:  outcomes,
		sleep:     sleepContext,
	}
}

// Run syncs all of the user's accounts for the given provider over the
// [from, to] window. An empty slice means the user has no linked accounts
// for that provider.
func (s *SyncService) Run(ctx context.Context, userID, providerID string, from, to time.Time) ([]SyncResult, error) {
	p, ok := s.registry.Get(providerID)
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	if err := s.providers.Ensure(ctx, providerID, displayName(providerID)); err != nil {
		return nil, fmt.Errorf("failed to ensure provider row: %w", err)
	}

	accounts, err := s.accounts.ListByUserAndProvider(ctx, userID, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	results := make([]SyncResult, 0, len(accounts))
	for _, account := range accounts {
		result := s.syncAccount(ctx, p, account, from, to)
		results = append(results, result)
		s.recordOutcome(ctx, providerID, result.Status)
	}
	return results, nil
}

func (s *SyncService) syncAccount(ctx context.Context, p provider.Provider, account *domain.SocialAccount, from, to time.Time) SyncResult {
	result := SyncResult{AccountID: account.ID}

	job, err := s.jobs.Claim(ctx, account.ID, p.ID(), time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrSyncInProgress) {
			result.Status = SyncStatusSkipped
			result.Reason = "Sync already in progress"
			return result
		}
		s.logger.Error("failed to claim sync job",
			zap.String("account_id", account.ID), zap.Error(err))
		result.Status = SyncStatusError
		result.Error = err.Error()
		return result
	}
	result.JobID = job.ID

	// Deliberate pacing between accounts so a user with many accounts does
	// not hammer the provider API in one burst.
	if err := s.sleep(ctx, s.throttle); err != nil {
		return s.fail(ctx, result, job.ID, err)
	}

	if refresher, ok := p.(provider.TokenRefresher); ok {
		token, err := refresher.RefreshTokenIfNeeded(ctx, account)
		if err != nil {
			return s.fail(ctx, result, job.ID, err)
		}
		// The refresher contract promises only the returned token; the
		// fetch below must use it whether or not the account was mutated.
		account.AccessToken = token
	}

	points, err := p.FetchMetrics(ctx, account, from, to)
	if err != nil {
		return s.fail(ctx, result, job.ID, err)
	}

	if err := s.metrics.UpsertBatch(ctx, account.ID, p.ID(), account.UserID, points); err != nil {
		return s.fail(ctx, result, job.ID, err)
	}

	if err := s.jobs.MarkCompleted(ctx, job.ID, time.Now()); err != nil {
		s.logger.Error("failed to mark sync job completed",
			zap.String("job_id", job.ID), zap.Error(err))
	}
	if err := s.accounts.UpdateLastSynced(ctx, account.ID, time.Now()); err != nil {
		s.logger.Warn("failed to update last synced timestamp",
			zap.String("account_id", account.ID), zap.Error(err))
	}

	s.logger.Info("account synced",
		zap.String("provider", p.ID()),
		zap.String("account_id", account.ID),
		zap.Int("points", len(points)))

	result.Status = SyncStatusCompleted
	return result
}

func (s *SyncService) fail(ctx context.Context, result SyncResult, jobID string, cause error) SyncResult {
	s.logger.Error("account sync failed",
		zap.String("account_id", result.AccountID),
		zap.String("job_id", jobID),
		zap.Error(cause))
	if err := s.jobs.MarkFailed(ctx, jobID, cause.Error(), time.Now()); err != nil {
		s.logger.Error("failed to mark sync job failed",
			zap.String("job_id", jobID), zap.Error(err))
	}
	result.Status = SyncStatusFailed
	result.Error = cause.Error()
	return result
}

func (s *SyncService) recordOutcome(ctx context.Context, providerID, status string) {
	if s.outcomes == nil {
		return
	}
	s.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", providerID),
		attribute.String("status", status),
	))
}

func displayName(providerID string) string {
	if name, ok := providerDisplayNames[providerID]; ok {
		return name
	}
	return providerID
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
