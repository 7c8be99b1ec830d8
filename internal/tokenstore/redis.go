package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisArea is a durable area keyed as <prefix>:<profile>:<key>.
type RedisArea struct {
	client  redis.Cmdable
	prefix  string
	profile string
}

// NewRedisClient parses url and verifies the server answers a PING.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

func NewRedisArea(client redis.Cmdable, prefix string, profile string) *RedisArea {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "fintrack"
	}
	return &RedisArea{client: client, prefix: prefix, profile: profile}
}

func (a *RedisArea) Name() string { return "redis" }

func (a *RedisArea) key(key string) string {
	return a.prefix + ":" + a.profile + ":" + key
}

func (a *RedisArea) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := a.client.Get(ctx, a.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, v != "", nil
}

func (a *RedisArea) Set(ctx context.Context, key string, value string) error {
	if value == "" {
		return a.Delete(ctx, key)
	}
	if err := a.client.Set(ctx, a.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (a *RedisArea) Delete(ctx context.Context, key string) error {
	if err := a.client.Del(ctx, a.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
