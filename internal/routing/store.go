package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const policyKey = "routing:policy"

// Store persists the routing policy in Redis.
type Store struct {
	redis *redis.Client
}

// NewStore creates a policy store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

// Get retrieves the active policy, returning the built-in default when none
// has been saved yet.
func (s *Store) Get(ctx context.Context) (Config, error) {
	data, err := s.redis.Get(ctx, policyKey).Bytes()
	if err == redis.Nil {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("routing: get policy: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("routing: unmarshal policy: %w", err)
	}
	return cfg, nil
}

// Set saves the policy. Callers are expected to invalidate any provider
// cache afterwards so the change takes effect before the TTL lapses.
func (s *Store) Set(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("routing: marshal policy: %w", err)
	}
	if err := s.redis.Set(ctx, policyKey, data, 0).Err(); err != nil {
		return fmt.Errorf("routing: set policy: %w", err)
	}
	return nil
}
