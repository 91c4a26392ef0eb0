// Package cache connects the Redis instance that holds learner sessions when
// the redis session store is selected. Sessions are the only thing kept here;
// the key layout belongs to session.RedisStore.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultIOTimeout   = 3 * time.Second
)

// Cache is a pinged Redis client shared by the session store and /readyz.
type Cache struct {
	Client *redis.Client
}

// Option tunes the client before it connects.
type Option func(*redis.Options)

// WithTimeouts overrides the dial and read/write timeouts.
func WithTimeouts(dial, io time.Duration) Option {
	return func(o *redis.Options) {
		if dial > 0 {
			o.DialTimeout = dial
		}
		if io > 0 {
			o.ReadTimeout = io
			o.WriteTimeout = io
		}
	}
}

// ParseURL validates MINDSHIFT_CACHE_URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty; set MINDSHIFT_CACHE_URL for the redis session store")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// New dials the session cache and pings it once. A session store that cannot
// reach Redis at startup is a configuration error, not something to retry.
func New(ctx context.Context, url string, opts ...Option) (*Cache, error) {
	ro, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	ro.DialTimeout = defaultDialTimeout
	ro.ReadTimeout = defaultIOTimeout
	ro.WriteTimeout = defaultIOTimeout
	for _, opt := range opts {
		opt(ro)
	}
	return Connect(ctx, redis.NewClient(ro))
}

// Connect wraps an existing client, closing it if the ping fails.
func Connect(ctx context.Context, client *redis.Client) (*Cache, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging session cache at %s: %w", client.Options().Addr, err)
	}
	return &Cache{Client: client}, nil
}

// Addr is the host:port of the cache, safe to log.
func (c *Cache) Addr() string {
	return c.Client.Options().Addr
}

func (c *Cache) Close() error {
	return c.Client.Close()
}

// HealthCheck backs the "cache" readiness check.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
