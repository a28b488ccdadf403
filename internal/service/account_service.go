package service

import (
	"context"
	"fmt"
	"time"

	"github.com/RicardoRB/socialstats/internal/dto"
	"github.com/RicardoRB/socialstats/internal/repository"
)

// AccountService lists a user's linked accounts with credentials stripped.
type AccountService struct {
	accounts repository.SocialAccountRepository
}

// NewAccountService creates a new account service
func NewAccountService(accounts repository.SocialAccountRepository) *AccountService {
	return &AccountService{accounts: accounts}
}

// List returns the user's linked accounts, newest first per the repository
// ordering. Tokens never leave this layer.
func (s *AccountService) List(ctx context.Context, userID string) ([]dto.SocialAccountResponse, error) {
	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	responses := make([]dto.SocialAccountResponse, 0, len(accounts))
	for _, account := range accounts {
		resp := dto.SocialAccountResponse{
			ID:             account.ID,
			Provider:       account.Provider,
			ProviderUserID: account.ProviderUserID,
			DisplayName:    account.DisplayName,
			AvatarURL:      account.AvatarURL,
			ConnectedAt:    account.ConnectedAt.UTC().Format(time.RFC3339),
		}
		if account.LastSyncedAt != nil {
			synced := account.LastSyncedAt.UTC().Format(time.RFC3339)
			resp.LastSyncedAt = &synced
		}
		responses = append(responses, resp)
	}
	return responses, nil
}
