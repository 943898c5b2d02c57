// Package redis builds the Redis client used by the stream transport.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resumable-chat/backend/pkg/config"

	"github.com/redis/go-redis/v9"
)

// NewClient connects to REDIS_URL. Both redis:// URLs and bare host:port
// addresses are accepted. It returns nil, nil when Redis is not configured.
func NewClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.URL == "" {
		return nil, nil
	}

	var opts *redis.Options
	if strings.Contains(cfg.Redis.URL, "://") {
		parsed, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.Redis.URL, DB: cfg.Redis.DB}
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	// stream taps block server-side for up to the block timeout
	opts.ReadTimeout = cfg.Streams.BlockTimeout + 2*time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
