package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	userDomain "github.com/zenbook/service-booking/internal/domain/user"
)

const tokenKeyPrefix = "zenbook:"

// RedisTokenStore implements user.TokenStore on Redis.
type RedisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore creates a RedisTokenStore.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

// Put stores value under key with ttl, replacing any previous value.
func (s *RedisTokenStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, tokenKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Get returns the value for key or user.ErrTokenNotFound.
func (s *RedisTokenStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, tokenKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", userDomain.ErrTokenNotFound
		}
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return val, nil
}

// Incr increments a counter and sets its expiry when it is created.
func (s *RedisTokenStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	k := tokenKeyPrefix + key
	n, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, k, ttl).Err(); err != nil {
			return 0, fmt.Errorf("failed to set counter expiry: %w", err)
		}
	}
	return n, nil
}

// Delete removes keys. Missing keys are ignored.
func (s *RedisTokenStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = tokenKeyPrefix + k
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}
	return nil
}
