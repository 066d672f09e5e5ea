package course

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "course_tree:"}
}

func (c *RedisCache) Get(ctx context.Context, courseID string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, c.prefix+courseID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, courseID string, tree []byte) error {
	return c.client.Set(ctx, c.prefix+courseID, tree, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, courseID string) error {
	return c.client.Del(ctx, c.prefix+courseID).Err()
}
