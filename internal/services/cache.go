package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/temcen/glowrank/internal/ranking"
)

// RedisCache is a ResultCache backed by a single Redis client.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache namespaces every key under prefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

// Get decodes the cached value into dest. A miss returns false and no error.
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

// DeletePrefix removes every key starting with prefix.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, c.key(prefix)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func rankingCacheKey(userID, version, fingerprint string) string {
	return fmt.Sprintf("rank:%s:%s:%s", userID, version, fingerprint)
}

// historyFingerprint digests the per-user ranking inputs, so a new visit,
// purchase or favorite lands on a fresh cache key.
func historyFingerprint(req *ranking.RankRequest) (string, error) {
	data, err := json.Marshal(struct {
		User      interface{} `json:"u"`
		Visits    interface{} `json:"v"`
		Purchases interface{} `json:"p"`
		Favorites interface{} `json:"f"`
	}{req.User, req.Visits, req.Purchases, req.Favorites})
	if err != nil {
		return "", fmt.Errorf("fingerprint history: %w", err)
	}
	h := fnv.New64a()
	h.Write(data)
	return strconv.FormatUint(h.Sum64(), 16), nil
}

func userCachePrefix(userID string) string {
	return fmt.Sprintf("rank:%s:", userID)
}
