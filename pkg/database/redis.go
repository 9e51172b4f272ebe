package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/config"

	"github.com/go-redis/redis/v8"
)

const redisDialTimeout = 5 * time.Second

// InitRedis connects the shared client backing the question-set cache
// and the one-time reset-token store. Startup fails fast on an
// unreachable server instead of surfacing errors on first use.
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     50,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Println("Redis connection established")
	return rdb, nil
}
