package ontology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces ontology entries in a shared Redis.
const DefaultRedisPrefix = "vibe-kg:ontology:"

// RedisCache is a Cache shared across runs through Redis. Entries are JSON
// encoded and expire after ttl (zero keeps them forever).
type RedisCache struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(rdb *goredis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: DefaultRedisPrefix, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisCache(rdb, ttl), nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (Term, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Term{}, false, nil
	}
	if err != nil {
		return Term{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var t Term
	if err := json.Unmarshal(raw, &t); err != nil {
		return Term{}, false, fmt.Errorf("decode cached term %s: %w", key, err)
	}
	return t, true, nil
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, key string, t Term) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
