package masterdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores resolved option lists between screen loads.
type Cache interface {
	Get(ctx context.Context, key string) ([]string, bool, error)
	Set(ctx context.Context, key string, options []string) error
}

// Memory is a process-local Cache.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]string
}

// NewMemory returns an empty memory cache.
func NewMemory() *Memory {
	return &Memory{items: map[string][]string{}}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	options, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]string(nil), options...), true, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, options []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]string{}, options...)
	return nil
}

// DefaultRedisPrefix namespaces cached lists.
const DefaultRedisPrefix = "formflow:masterdata:"

// RedisOption customises a RedisCache.
type RedisOption func(*RedisCache)

// WithPrefix overrides the key namespace.
func WithPrefix(prefix string) RedisOption {
	return func(c *RedisCache) {
		c.prefix = prefix
	}
}

// WithTTL sets the expiry of cached lists. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(c *RedisCache) {
		c.ttl = ttl
	}
}

// RedisCache shares option lists across engine instances.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps a go-redis client.
func NewRedisCache(client redis.Cmdable, opts ...RedisOption) *RedisCache {
	c := &RedisCache{client: client, prefix: DefaultRedisPrefix, ttl: time.Hour}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string, opts ...RedisOption) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("masterdata: connect redis %s: %w", addr, err)
	}
	return NewRedisCache(client, opts...), nil
}

// Close releases the underlying client when it supports closing.
func (c *RedisCache) Close() error {
	if closer, ok := c.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("masterdata: redis get %s: %w", key, err)
	}
	var options []string
	if err := json.Unmarshal(raw, &options); err != nil {
		return nil, false, fmt.Errorf("masterdata: decode cached %s: %w", key, err)
	}
	return options, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, options []string) error {
	data, err := json.Marshal(options)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("masterdata: redis set %s: %w", key, err)
	}
	return nil
}
