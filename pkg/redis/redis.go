package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/sudo-enjoy/matching-app-be/config"

	"github.com/redis/go-redis/v9"
)

var global *redis.Client

// Client 返回全局客户端（未初始化或降级时为 nil）
func Client() *redis.Client {
	return global
}

// ReplaceGlobal 设置全局客户端
func ReplaceGlobal(c *redis.Client) {
	global = c
}

// Build 创建客户端并 PING 校验连通性
func Build(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}
