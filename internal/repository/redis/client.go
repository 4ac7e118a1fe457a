package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key written by this package.
const DefaultNamespace = "stats"

// Client wraps the Redis connection shared by the statistics caches.
type Client struct {
	rdb       *redis.Client
	namespace string
}

// Option configures a Client.
type Option func(*Client)

// WithNamespace replaces DefaultNamespace, letting several deployments
// share one Redis database.
func WithNamespace(ns string) Option {
	return func(c *Client) { c.namespace = ns }
}

// NewClient connects from a redis:// URL and verifies the server answers.
func NewClient(redisURL string, opts ...Option) (*Client, error) {
	ro, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	c := NewClientFromPool(redis.NewClient(ro), opts...)
	if err := c.Ping(context.Background()); err != nil {
		c.rdb.Close()
		return nil, err
	}
	return c, nil
}

// NewClientFromPool wraps an existing redis.Client for use in tests.
func NewClientFromPool(rdb *redis.Client, opts ...Option) *Client {
	c := &Client{rdb: rdb, namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping reports whether the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// key joins parts under the client namespace: ns:part1:part2...
func (c *Client) key(parts ...string) string {
	return c.namespace + ":" + strings.Join(parts, ":")
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
