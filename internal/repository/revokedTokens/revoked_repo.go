package revokedTokens

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevokedTokensRepo keeps the ids of revoked access tokens until the tokens
// would have expired anyway.
type RevokedTokensRepo struct {
	Client *redis.Client
}

func New(client *redis.Client) *RevokedTokensRepo {
	return &RevokedTokensRepo{Client: client}
}

func (r *RevokedTokensRepo) buildKey(tokenID string) string {
	return fmt.Sprintf("revoked:%s", tokenID)
}

func (r *RevokedTokensRepo) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.Client.Set(ctx, r.buildKey(tokenID), "1", ttl.Round(time.Second)).Err()
}

func (r *RevokedTokensRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, err := r.Client.Get(ctx, r.buildKey(tokenID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
