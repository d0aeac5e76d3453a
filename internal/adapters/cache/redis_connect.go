package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect opens and verifies the Redis connection backing the poll locks.
// Accepts both redis:// URLs and bare host:port, so local and container
// configs stay interchangeable. The lock store is on the hot path of every
// initiation, hence the short dial and ping bounds.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: redisURL}
	}
	opts.ClientName = "payments-service"
	opts.DialTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
