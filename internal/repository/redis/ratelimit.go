package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sendCountKey buckets message-send counters per minute. The window stamp is
// part of the key, so a counter can never leak into the next window even when
// its expiry lags.
func sendCountKey(key string, window time.Time) string {
	return fmt.Sprintf("chat:sends:%s:%d", key, window.Unix())
}

// RateLimiter caps how many assistant messages one sender can submit per
// minute. Fixed one-minute windows; burst is headroom on top of the steady
// rate for short back-and-forth exchanges.
type RateLimiter struct {
	client    *Client
	perMinute int
	burst     int
}

// NewRateLimiter creates a rate limiter over the shared Redis client.
func NewRateLimiter(client *Client, perMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client:    client,
		perMinute: perMinute,
		burst:     burst,
	}
}

// Allow records one send attempt for the key and reports whether it fits the
// current window, how many sends remain, and when the window resets.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	now := time.Now()
	windowStart := now.Truncate(time.Minute)
	windowEnd := windowStart.Add(time.Minute)
	counterKey := sendCountKey(key, windowStart)

	pipe := r.client.rdb.Pipeline()
	incr := pipe.Incr(ctx, counterKey)
	// Expiry only reclaims memory; the key stamp already closes the window.
	pipe.Expire(ctx, counterKey, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to count message send: %w", err)
	}

	limit := int64(r.perMinute + r.burst)
	count := incr.Val()
	remaining := int(limit - count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= limit, remaining, windowEnd, nil
}

// Reset clears the sender's counter for the current window.
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	counterKey := sendCountKey(key, time.Now().Truncate(time.Minute))
	return r.client.rdb.Del(ctx, counterKey).Err()
}
