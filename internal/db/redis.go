package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedis creates a redis client from a URL ("redis://host:6379/0").
//
// Redis is a soft dependency here: it backs the cluster-wide rate-limit
// window, and the limiter degrades to a per-process window when it is
// unreachable. Startup therefore logs a failed ping instead of aborting.
func NewRedis(ctx context.Context, redisURL string, logger *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, rate limiting degrades to per-process",
			zap.Error(err),
		)
	} else {
		logger.Info("redis connection established", zap.String("addr", opts.Addr))
	}
	return client, nil
}
