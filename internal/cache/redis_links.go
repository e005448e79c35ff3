package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisLinkCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLinkCache(rdb *redis.Client, ttl time.Duration) *RedisLinkCache {
	return &RedisLinkCache{rdb: rdb, ttl: ttl}
}

func linkKey(channelID uuid.UUID) string {
	return fmt.Sprintf("links:%s", channelID)
}

func (c *RedisLinkCache) Recent(ctx context.Context, channelID uuid.UUID) ([]string, error) {
	return c.rdb.SMembers(ctx, linkKey(channelID)).Result()
}

func (c *RedisLinkCache) Remember(ctx context.Context, channelID uuid.UUID, link string) error {
	key := linkKey(channelID)
	if err := c.rdb.SAdd(ctx, key, link).Err(); err != nil {
		return err
	}
	// Refresh the TTL on every write; the whole set ages out together once a
	// channel stops posting.
	return c.rdb.Expire(ctx, key, c.ttl).Err()
}
