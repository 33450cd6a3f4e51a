package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"juris-rag-go/internal/config"
	"juris-rag-go/pkg/log"
)

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("[Database] Redis connected")
	return rdb, nil
}
