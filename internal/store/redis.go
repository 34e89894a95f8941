package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps state under pharmfinder:<scope>:<key>.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, scope, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisKey(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisStore) Set(ctx context.Context, scope, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, redisKey(scope, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, scope, key string) error {
	if err := r.client.Del(ctx, redisKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func redisKey(scope, key string) string {
	return fmt.Sprintf("pharmfinder:%s:%s", scope, key)
}
