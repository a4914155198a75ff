package dal

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"mkt-settle-api/internal/config"
)

// RedisClient 未配置地址时为 nil，调用方需判空（锁、计数、缓存都是增强项）
var RedisClient *redis.Client

func InitRedis() {
	c := config.C.Redis
	if c.Addr == "" {
		log.Printf("[Redis] addr empty, redis disabled")
		return
	}
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := RedisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("[Redis] ping %s failed: %v", c.Addr, err)
	}
}
