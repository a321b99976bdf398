// File: utils/cache.go
package utils

import (
	"context"
	"fmt"
	"time"

	"villagestay/config"

	"github.com/go-redis/redis/v8"
)

// NewCacheClient connects the Redis client backing negotiation sessions.
func NewCacheClient(ctx context.Context) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisCacheDB,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis (Cache): %w", err)
	}
	return client, nil
}
