package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mwb/internal"
	"mwb/internal/config"
)

type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if client == nil {
		panic("cache: redis client cannot be nil")
	}
	if prefix == "" {
		prefix = "mwb"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) ([]internal.WeekProgram, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: failed to load %s: %w", key, err)
	}
	var weeks []internal.WeekProgram
	if err := json.Unmarshal(data, &weeks); err != nil {
		return nil, false, fmt.Errorf("cache: failed to decode %s: %w", key, err)
	}
	return weeks, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, weeks []internal.WeekProgram) error {
	data, err := json.Marshal(weeks)
	if err != nil {
		return fmt.Errorf("cache: failed to encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: failed to store %s: %w", key, err)
	}
	return nil
}

func (r *Redis) key(key string) string {
	return fmt.Sprintf("%s:weeks:%s", r.prefix, key)
}

// FromConfig returns a Redis cache when REDIS_URL is set, else an in-process one.
func FromConfig(cfg config.Config) (Cache, error) {
	if cfg.RedisURL == "" {
		return NewMemory(), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid REDIS_URL: %w", err)
	}
	return NewRedis(redis.NewClient(opts), "mwb:"+cfg.Language, cfg.CacheTTL()), nil
}
