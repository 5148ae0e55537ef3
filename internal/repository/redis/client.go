// Package redis holds the optional Redis-backed pieces of the service:
// the message-send rate limiter and the conversation history cache. The
// service runs without them when Redis is disabled.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brightsteps/assistant/internal/config"
)

// Client wraps the Redis connection shared by the limiter and the cache.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis and verifies the connection before returning.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Client returns the underlying Redis client.
func (c *Client) Client() *redis.Client {
	return c.rdb
}
