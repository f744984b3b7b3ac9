package client

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"banking-service/internal/config"
	"banking-service/internal/util"
)

// RedisClient wraps the go-redis client used by the distributed rate-limit
// backend.
type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	redisConfig := cfg.Redis

	client := redis.NewClient(&redis.Options{
		Addr:            redisConfig.Addr,
		Password:        redisConfig.Password,
		DB:              redisConfig.DB,
		PoolSize:        redisConfig.PoolSize,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	util.Info("Redis client initialized",
		util.String("addr", redisConfig.Addr),
		util.Int("pool_size", redisConfig.PoolSize))

	return &RedisClient{Client: client}, nil
}

func (c *RedisClient) HealthCheck(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if err := c.Client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	util.Info("Redis client closed")
	return nil
}
