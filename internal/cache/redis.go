package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisURL 未配置 REDIS_URL 时使用
const DefaultRedisURL = "redis://localhost:6379/1"

// RedisStore 基于 go-redis 的存储
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 连接超时与读写超时均为 5 秒
func NewRedisStore(url string) (*RedisStore, error) {
	if url == "" {
		url = DefaultRedisURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 5 * time.Second
	opts.WriteTimeout = 5 * time.Second
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) SetEX(ctx context.Context, key string, ttl time.Duration, value string) error {
	return r.client.SetEx(ctx, key, value, ttl).Err()
}

func (r *RedisStore) Close() error { return r.client.Close() }
