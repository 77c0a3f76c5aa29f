package adapter

import (
	"context"
	"time"

	"trivia-quiz/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisCacheAdapter implements the domain.Cache interface using a Redis client.
type RedisCacheAdapter struct {
	client *redis.Client
}

// NewRedisCacheAdapter creates a new instance of RedisCacheAdapter.
// It expects a connected *redis.Client.
func NewRedisCacheAdapter(client *redis.Client) domain.Cache {
	return &RedisCacheAdapter{client: client}
}

// PushCapped prepends value with LPUSH, trims the list with LTRIM and, when
// expiration is positive, refreshes the key TTL. The commands run in one
// MULTI/EXEC so the list is never left over the cap or without its TTL.
func (r *RedisCacheAdapter) PushCapped(ctx context.Context, key string, value string, max int64, expiration time.Duration) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, value)
		if max > 0 {
			pipe.LTrim(ctx, key, 0, max-1)
		}
		if expiration > 0 {
			pipe.Expire(ctx, key, expiration)
		}
		return nil
	})
	return err
}

// ListRange returns the whole list stored at key.
func (r *RedisCacheAdapter) ListRange(ctx context.Context, key string) ([]string, error) {
	vals, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []string{}, nil
		}
		return nil, err
	}
	return vals, nil
}

// Delete removes an item from the Redis cache.
func (r *RedisCacheAdapter) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Ping checks the health of the Redis server.
func (r *RedisCacheAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
