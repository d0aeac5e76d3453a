package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIntentLockStore single-flights polling per correlation id across
// replicas. SetNX with a TTL slightly past the poll budget means a replaced
// or crashed instance releases its claims without operator action.
type RedisIntentLockStore struct {
	client *redis.Client
}

// NewRedisIntentLockStore creates the poll single-flight lock adapter.
func NewRedisIntentLockStore(client *redis.Client) *RedisIntentLockStore {
	return &RedisIntentLockStore{client: client}
}

func (s *RedisIntentLockStore) Acquire(ctx context.Context, correlationID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return s.client.SetNX(ctx, lockKey(correlationID), "1", ttl).Result()
}

func (s *RedisIntentLockStore) Release(ctx context.Context, correlationID string) error {
	return s.client.Del(ctx, lockKey(correlationID)).Err()
}

func lockKey(correlationID string) string {
	return "payments:poll:lock:" + correlationID
}
