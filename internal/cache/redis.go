package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/procktails/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces cart entries next to the catalog snapshot in the same
// Redis instance.
const keyPrefix = "cart:"

const (
	defaultBaseTTL = 15 * time.Minute
	defaultJitter  = 5 * time.Minute
)

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
	jitter  time.Duration
}

type Option func(*RedisCache)

// WithTTL sets the base lifetime of a cached cart and the random jitter
// added on top of it. A zero jitter makes expiry exact.
func WithTTL(base, jitter time.Duration) Option {
	return func(c *RedisCache) {
		c.baseTTL = base
		c.jitter = jitter
	}
}

func NewRedisCache(client *redis.Client, opts ...Option) *RedisCache {
	c := &RedisCache{
		client:  client,
		baseTTL: defaultBaseTTL,
		jitter:  defaultJitter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) Get(ctx context.Context, actorKey string) (*domain.Cart, error) {
	data, err := c.client.Get(ctx, cacheKey(actorKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	return &cart, nil
}

func (c *RedisCache) Set(ctx context.Context, actorKey string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// Jitter spreads expiry so a burst of carts cached together does not
	// stampede the repository one TTL later.
	ttl := c.baseTTL
	if c.jitter > 0 {
		ttl += time.Duration(rand.Int63n(int64(c.jitter)))
	}
	if err := c.client.Set(ctx, cacheKey(actorKey), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, actorKey string) error {
	if err := c.client.Del(ctx, cacheKey(actorKey)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(actorKey string) string {
	return keyPrefix + actorKey
}
