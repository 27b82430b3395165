package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"unionvote/pkg/platform/sentinel"
)

const throttleKeyPrefix = "throttle:"

// RedisStore uses INCR with an expiry set only on the first hit of a window.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Hit(ctx context.Context, key string, window time.Duration, _ time.Time) (int, error) {
	k := throttleKeyPrefix + key
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("throttle hit: %w: %w", sentinel.ErrUnavailable, err)
	}
	return int(incr.Val()), nil
}

// DeleteExpired is a no-op: Redis expires counters itself.
func (s *RedisStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
