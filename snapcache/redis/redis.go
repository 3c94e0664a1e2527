// Package redis implements snapcache.Cache on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "isorender:"

// Options configure the Redis snapshot cache.
type Options struct {
	Addr           string
	SentinelAddrs  []string
	SentinelMaster string
	Username       string
	Password       string
	DB             int
	KeyPrefix      string
}

// Cache implements snapcache.Cache using Redis.
type Cache struct {
	client goredis.UniversalClient
	prefix string
}

// New creates a Redis-backed snapshot cache. Supports single instance or
// Sentinel via UniversalClient.
func New(opts Options) (*Cache, error) {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:      addrs(opts),
		MasterName: opts.SentinelMaster,
		Username:   opts.Username,
		Password:   opts.Password,
		DB:         opts.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Cache{
		client: client,
		prefix: prefix,
	}, nil
}

func addrs(opts Options) []string {
	if len(opts.SentinelAddrs) > 0 {
		return opts.SentinelAddrs
	}
	if opts.Addr != "" {
		return []string{opts.Addr}
	}
	return []string{"127.0.0.1:6379"}
}

// Close releases the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Get returns the cached snapshot bytes for key, if still live.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put stores data under key for at most ttl.
func (c *Cache) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}
