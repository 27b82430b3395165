package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"unionvote/pkg/platform/sentinel"
)

const (
	// Redis key prefix for revoked tokens
	revokedTokenKeyPrefix = "trl:jti:"
)

// RedisTRL is a Redis-backed token revocation list shared by all instances.
// Entries expire with the token, so no sweep is needed.
type RedisTRL struct {
	client *redis.Client
}

// NewRedisTRL constructs a Redis-backed token revocation list.
func NewRedisTRL(client *redis.Client) *RedisTRL {
	return &RedisTRL{client: client}
}

// RevokeToken adds a token to the revocation list with TTL.
func (t *RedisTRL) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if err := t.client.Set(ctx, revokedTokenKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// IsTokenRevoked checks if a token is in the revocation list.
func (t *RedisTRL) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	err := t.client.Get(ctx, revokedTokenKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w: %w", sentinel.ErrUnavailable, err)
	}
	return true, nil
}

// DeleteExpired is a no-op: Redis expires keys itself.
func (t *RedisTRL) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
