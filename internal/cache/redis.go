package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ggokuldas06/tds-project1/internal/logging"
)

// RedisStore records deliveries as SETNX keys with a TTL, so replay
// suppression survives restarts and is shared between instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL (redis://host:port/db) and
// verifies the connection before returning.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.L().Info("Redis replay suppression connected")
	return &RedisStore{client: client, ttl: ttl}, nil
}

// MarkSeen atomically claims the delivery key. A store error fails
// open: the delivery counts as new so the task is not dropped.
func (s *RedisStore) MarkSeen(ctx context.Context, task string, round int, nonce string) (bool, error) {
	key := dedupeKey(task, round, nonce)

	set, err := s.client.SetNX(ctx, key, 1, s.ttl).Result()
	if err != nil {
		return true, fmt.Errorf("dedupe check failed: %w", err)
	}
	return set, nil
}

// Forget releases a claimed delivery key so a retry of the same triple
// is treated as new.
func (s *RedisStore) Forget(ctx context.Context, task string, round int, nonce string) error {
	if err := s.client.Del(ctx, dedupeKey(task, round, nonce)).Err(); err != nil {
		return fmt.Errorf("dedupe release failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
