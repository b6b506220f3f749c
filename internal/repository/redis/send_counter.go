// Package redis provides a Redis-backed notification send counter.
package redis

import (
	"context"
	"fmt"
	"time"

	"alcyxob/coach-scheduling/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "coach-scheduling:notify:"

// Config contains Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// SendCounter counts sends per fixed window with INCR and a one-shot EXPIRE.
type SendCounter struct {
	client *redis.Client
	logger zerolog.Logger
}

var _ repository.SendCounter = (*SendCounter)(nil)

// NewSendCounter connects to Redis and verifies the connection.
func NewSendCounter(cfg Config, logger zerolog.Logger) (*SendCounter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("Redis send counter initialized")
	return NewSendCounterFromClient(client, logger), nil
}

// NewSendCounterFromClient wraps an existing client.
func NewSendCounterFromClient(client *redis.Client, logger zerolog.Logger) *SendCounter {
	return &SendCounter{
		client: client,
		logger: logger.With().Str("component", "send_counter").Logger(),
	}
}

// Increment bumps the window counter for key and returns the new count.
func (c *SendCounter) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int64, error) {
	if window <= 0 {
		return 0, fmt.Errorf("send counter window must be positive, got %s", window)
	}
	bucket := now.UnixNano() / int64(window)
	redisKey := fmt.Sprintf("%s%s:%d", keyPrefix, key, bucket)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Debug().Err(err).Str("key", redisKey).Msg("send counter pipeline failed")
		return 0, err
	}
	return incr.Val(), nil
}

// Close closes the Redis connection.
func (c *SendCounter) Close() error {
	return c.client.Close()
}
