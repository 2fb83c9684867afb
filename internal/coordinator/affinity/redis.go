package affinity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caseline/caseline/internal/common/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements Store using Redis, so multiple replicas share
// affinity state. An optional TTL bounds entry lifetime; zero means no
// expiry, matching the memory store's semantics.
type RedisStore struct {
	logger *zap.Logger
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-based affinity store.
func NewRedisStore(logger *zap.Logger, cfg config.AffinityRedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "affinity"
	}

	return &RedisStore{
		logger: logger.Named("affinity.store.redis"),
		client: client,
		prefix: prefix + ":",
		ttl:    cfg.TTL,
	}, nil
}

// Get implements Store.Get
func (s *RedisStore) Get(ctx context.Context, conversationID string) (string, error) {
	name, err := s.client.Get(ctx, s.prefix+conversationID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get affinity entry: %w", err)
	}
	return name, nil
}

// Set implements Store.Set
func (s *RedisStore) Set(ctx context.Context, conversationID, backendName string) error {
	if err := s.client.Set(ctx, s.prefix+conversationID, backendName, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set affinity entry: %w", err)
	}
	return nil
}

// Clear implements Store.Clear
func (s *RedisStore) Clear(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, s.prefix+conversationID).Err(); err != nil {
		return fmt.Errorf("failed to clear affinity entry: %w", err)
	}
	return nil
}

// Close implements Store.Close
func (s *RedisStore) Close() error {
	return s.client.Close()
}
