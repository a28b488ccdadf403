package repository

import (
	"github.com/RicardoRB/socialstats/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	Accounts  SocialAccountRepository
	Jobs      SyncJobRepository
	Metrics   MetricRepository
	Providers SocialProviderRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		Accounts:  NewSocialAccountRepository(db),
		Jobs:      NewSyncJobRepository(db),
		Metrics:   NewMetricRepository(db),
		Providers: NewSocialProviderRepository(db),
	}
}
