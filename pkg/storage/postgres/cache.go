package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/openskills/skillhub/pkg/config"
	"github.com/openskills/skillhub/pkg/observability"
	"github.com/openskills/skillhub/pkg/storage"
)

// Cache is a Redis read-through cache for skill lookups. Misses and errors
// both fall through to the database; the cache never fails a request.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCache connects to Redis and verifies connectivity.
func NewCache(cfg config.StorageConfig, metrics *observability.Metrics) (*Cache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB > 0 {
		opts.DB = cfg.RedisDB
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Cache{client: client, ttl: ttl, metrics: metrics}, nil
}

// NewCacheWithClient wraps an existing client. Used by tests.
func NewCacheWithClient(client *redis.Client, ttl time.Duration, metrics *observability.Metrics) *Cache {
	return &Cache{client: client, ttl: ttl, metrics: metrics}
}

func skillKey(uuid string) string {
	return "skill:" + uuid
}

// GetSkill retrieves a cached skill. (nil, nil) on a miss.
func (c *Cache) GetSkill(ctx context.Context, uuid string) (*storage.Skill, error) {
	data, err := c.client.Get(ctx, skillKey(uuid)).Result()
	if err == redis.Nil {
		c.countMiss()
		return nil, nil
	}
	if err != nil {
		c.countMiss()
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var skill storage.Skill
	if err := json.Unmarshal([]byte(data), &skill); err != nil {
		// Corrupt entry; drop it and treat as a miss.
		c.client.Del(ctx, skillKey(uuid))
		c.countMiss()
		return nil, fmt.Errorf("failed to unmarshal cached skill: %w", err)
	}

	c.countHit()
	return &skill, nil
}

// SetSkill stores a skill with the configured TTL.
func (c *Cache) SetSkill(ctx context.Context, skill *storage.Skill) error {
	data, err := json.Marshal(skill)
	if err != nil {
		return fmt.Errorf("failed to marshal skill: %w", err)
	}
	return c.client.Set(ctx, skillKey(skill.UUID), data, c.ttl).Err()
}

// InvalidateSkill drops a skill from the cache.
func (c *Cache) InvalidateSkill(ctx context.Context, uuid string) error {
	return c.client.Del(ctx, skillKey(uuid)).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) countHit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues("skills").Inc()
	}
}

func (c *Cache) countMiss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues("skills").Inc()
	}
}
