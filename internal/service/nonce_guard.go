package service

import (
	"context"
	"fmt"
	"time"

	"github.com/RicardoRB/socialstats/pkg/database"
)

// NonceGuard makes signed state tokens single-use. The tokens themselves are
// stateless, so replay protection needs shared storage: the nonce is claimed
// in Redis with the token's remaining lifetime as TTL.
type NonceGuard struct {
	redis *database.Redis
}

// NewNonceGuard creates a new nonce guard
func NewNonceGuard(redis *database.Redis) *NonceGuard {
	return &NonceGuard{redis: redis}
}

// Consume claims a nonce. The second call for the same nonce returns
// ErrStateReplayed until the key expires, which happens when the state token
// itself would no longer verify anyway.
func (g *NonceGuard) Consume(ctx context.Context, nonce string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}

	key := fmt.Sprintf("oauth:state:nonce:%s", nonce)
	set, err := g.redis.Client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to claim state nonce: %w", err)
	}
	if !set {
		return ErrStateReplayed
	}
	return nil
}
