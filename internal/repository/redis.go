package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pawsit/internal/config"
	"pawsit/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisReferenceCache stores catalog entities in Redis as JSON with a TTL.
type RedisReferenceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisReferenceCache(client *redis.Client, ttl time.Duration) *RedisReferenceCache {
	return &RedisReferenceCache{client: client, ttl: ttl}
}

func (r *RedisReferenceCache) GetOffering(ctx context.Context, id int64) (*models.ServiceOffering, error) {
	var offering models.ServiceOffering
	ok, err := r.get(ctx, fmt.Sprintf("offering:%d", id), &offering)
	if err != nil || !ok {
		return nil, err
	}
	return &offering, nil
}

func (r *RedisReferenceCache) SetOffering(ctx context.Context, offering *models.ServiceOffering) error {
	return r.set(ctx, fmt.Sprintf("offering:%d", offering.ID), offering)
}

func (r *RedisReferenceCache) GetSitter(ctx context.Context, id int64) (*models.Sitter, error) {
	var sitter models.Sitter
	ok, err := r.get(ctx, fmt.Sprintf("sitter:%d", id), &sitter)
	if err != nil || !ok {
		return nil, err
	}
	return &sitter, nil
}

func (r *RedisReferenceCache) SetSitter(ctx context.Context, sitter *models.Sitter) error {
	return r.set(ctx, fmt.Sprintf("sitter:%d", sitter.ID), sitter)
}

func (r *RedisReferenceCache) InvalidateOffering(ctx context.Context, id int64) error {
	return r.del(ctx, fmt.Sprintf("offering:%d", id))
}

func (r *RedisReferenceCache) InvalidateSitter(ctx context.Context, id int64) error {
	return r.del(ctx, fmt.Sprintf("sitter:%d", id))
}

func (r *RedisReferenceCache) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisReferenceCache) set(ctx context.Context, key string, value interface{}) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", key, err)
	}
	return nil
}

func (r *RedisReferenceCache) del(ctx context.Context, key string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", key, err)
	}
	return nil
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
