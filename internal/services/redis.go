package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisMaxRetries = 30
	redisRetryDelay = 2 * time.Second
)

// NewRedisClient parses a redis:// URL and returns a client. The
// connection is not checked; call WaitForConnection for that.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// WaitForConnection pings until redis answers, the retries run out or
// ctx is done.
func WaitForConnection(ctx context.Context, client *redis.Client, logger *slog.Logger) error {
	return waitForConnection(ctx, client, logger, redisMaxRetries, redisRetryDelay)
}

func waitForConnection(ctx context.Context, client *redis.Client, logger *slog.Logger, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		err := client.Ping(ctx).Err()
		if err == nil {
			logger.Info("Redis connection established")
			return nil
		}
		logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
		case <-time.After(retryDelay):
		}
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}
