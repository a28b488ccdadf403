package repository

import (
	"context"
	"fmt"

	"github.com/RicardoRB/socialstats/pkg/database"
)

// socialProviderRepository implements SocialProviderRepository interface
type socialProviderRepository struct {
	db *database.Postgres
}

// NewSocialProviderRepository creates a new social provider repository
func NewSocialProviderRepository(db *database.Postgres) SocialProviderRepository {
	return &socialProviderRepository{db: db}
}

// Ensure upserts the provider reference row that sync_jobs rows reference
func (r *socialProviderRepository) Ensure(ctx context.Context, id, displayName string) error {
	query := `
		INSERT INTO social_providers (id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name
	`

	if _, err := r.db.DB.ExecContext(ctx, query, id, displayName); err != nil {
		return fmt.Errorf("failed to ensure social provider %s: %w", id, err)
	}

	return nil
}
