// Package cache holds the Redis-backed pieces shared across instances.
package cache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps redis.Client and fails open when Redis is unreachable.
type Client struct {
	client *redis.Client
}

func New(addr, password string, db int) *Client {
	return &Client{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Ping reports whether Redis answered.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// incrWindow increments key and starts its TTL on the first hit of a window.
func (c *Client) incrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// WindowLimiter admits limit requests per key in each fixed window.
type WindowLimiter struct {
	c      *Client
	prefix string
	limit  int64
	window time.Duration
	log    *slog.Logger
}

func NewWindowLimiter(c *Client, prefix string, limit int, window time.Duration, logger *slog.Logger) *WindowLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if window < time.Second {
		window = time.Second
	}
	return &WindowLimiter{c: c, prefix: prefix, limit: int64(limit), window: window, log: logger}
}

// Allow lets the request through when Redis fails.
func (l *WindowLimiter) Allow(ctx context.Context, key string) bool {
	if l.c == nil || l.c.client == nil {
		return true
	}
	bucket := time.Now().Unix() / int64(l.window.Seconds())
	n, err := l.c.incrWindow(ctx, l.key(key, bucket), l.window)
	if err != nil {
		l.log.Warn("rate limiter unavailable", "err", err)
		return true
	}
	return n <= l.limit
}

func (l *WindowLimiter) key(key string, bucket int64) string {
	return l.prefix + ":" + key + ":" + strconv.FormatInt(bucket, 10)
}
