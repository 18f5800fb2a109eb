package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to redis and verifies the connection with a ping.
// Callers that can run without redis (dev, tests) should treat an error as
// "no durable backend" rather than fatal.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "",
		DB:       0, // use default DB
		PoolSize: 100,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("could not connect redis at %s: %w", addr, err)
	}
	return client, nil
}
