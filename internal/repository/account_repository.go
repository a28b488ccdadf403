package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/RicardoRB/socialstats/internal/domain"
	"github.com/RicardoRB/socialstats/pkg/database"
	"github.com/google/uuid"
)

// socialAccountRepository implements SocialAccountRepository interface
type socialAccountRepository struct {
	db *database.Postgres
}

// NewSocialAccountRepository creates a new social account repository
func NewSocialAccountRepository(db *database.Postgres) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

// Upsert inserts a new linked account or updates the existing row for the
// same (user_id, provider, provider_user_id). A missing refresh token on
// update keeps the stored one, since some providers only issue it once.
func (r *socialAccountRepository) Upsert(ctx context.Context, account *domain.SocialAccount) error {
	query := `
		INSERT INTO social_accounts (id, user_id, provider, provider_user_id, display_name, avatar_url,
			access_token, refresh_token, token_expires_at, connected_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, provider, provider_user_id)
		DO UPDATE SET
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(EXCLUDED.refresh_token, social_accounts.refresh_token),
			token_expires_at = EXCLUDED.token_expires_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, connected_at
	`

	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	now := time.Now()
	if account.ConnectedAt.IsZero() {
		account.ConnectedAt = now
	}
	account.UpdatedAt = now

	err := r.db.DB.QueryRowContext(ctx, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderUserID,
		account.DisplayName,
		account.AvatarURL,
		account.AccessToken,
		account.RefreshToken,
		account.TokenExpiresAt,
		account.ConnectedAt,
		account.UpdatedAt,
	).Scan(&account.ID, &account.ConnectedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert social account: %w", err)
	}

	return nil
}

// ListByUser retrieves all linked accounts for a user
func (r *socialAccountRepository) ListByUser(ctx context.Context, userID string) ([]*domain.SocialAccount, error) {
	query := selectAccountColumns + `
		WHERE user_id = $1
		ORDER BY connected_at DESC
	`

	return r.queryAccounts(ctx, query, userID)
}

// ListByUserAndProvider retrieves a user's linked accounts for one provider
func (r *socialAccountRepository) ListByUserAndProvider(ctx context.Context, userID, provider string) ([]*domain.SocialAccount, error) {
	query := selectAccountColumns + `
		WHERE user_id = $1 AND provider = $2
		ORDER BY connected_at
	`

	return r.queryAccounts(ctx, query, userID, provider)
}

const selectAccountColumns = `
		SELECT id, user_id, provider, provider_user_id, display_name, avatar_url,
			access_token, refresh_token, token_expires_at, last_synced_at, connected_at, updated_at
		FROM social_accounts
`

func (r *socialAccountRepository) queryAccounts(ctx context.Context, query string, args ...any) ([]*domain.SocialAccount, error) {
	rows, err := r.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query social accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.SocialAccount
	for rows.Next() {
		account := &domain.SocialAccount{}
		var refreshToken sql.NullString
		var tokenExpiresAt, lastSyncedAt sql.NullTime

		err := rows.Scan(
			&account.ID,
			&account.UserID,
			&account.Provider,
			&account.ProviderUserID,
			&account.DisplayName,
			&account.AvatarURL,
			&account.AccessToken,
			&refreshToken,
			&tokenExpiresAt,
			&lastSyncedAt,
			&account.ConnectedAt,
			&account.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan social account: %w", err)
		}

		if refreshToken.Valid {
			account.RefreshToken = &refreshToken.String
		}
		if tokenExpiresAt.Valid {
			account.TokenExpiresAt = &tokenExpiresAt.Time
		}
		if lastSyncedAt.Valid {
			account.LastSyncedAt = &lastSyncedAt.Time
		}

		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate social accounts: %w", err)
	}

	return accounts, nil
}

// UpdateTokens persists a refreshed access token, the rotated refresh token
// when the provider issued one, and the new expiry
func (r *socialAccountRepository) UpdateTokens(ctx context.Context, accountID, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	query := `
		UPDATE social_accounts
		SET access_token = $2,
			refresh_token = COALESCE($3, refresh_token),
			token_expires_at = $4,
			updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.DB.ExecContext(ctx, query, accountID, accessToken, refreshToken, expiresAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("social account with id %s not found: %w", accountID, ErrNotFound)
	}

	return nil
}

// UpdateLastSynced records the completion time of a successful sync
func (r *socialAccountRepository) UpdateLastSynced(ctx context.Context, accountID string, syncedAt time.Time) error {
	query := `
		UPDATE social_accounts
		SET last_synced_at = $2
		WHERE id = $1
	`

	result, err := r.db.DB.ExecContext(ctx, query, accountID, syncedAt)
	if err != nil {
		return fmt.Errorf("failed to update last synced: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("social account with id %s not found: %w", accountID, ErrNotFound)
	}

	return nil
}
