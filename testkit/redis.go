package testkit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/aegis/connector"
)

// GetRedisConfig 返回 Redis 测试配置
// 默认连接 localhost:6379，可通过 REDIS_ADDR 环境变量覆盖
func GetRedisConfig() *connector.RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	return &connector.RedisConfig{
		Name:         "test-redis",
		Addr:         addr,
		DB:           1, // 使用 DB 1 避免与默认的 DB 0 冲突
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// GetRedisConnector 获取已连接的 Redis 连接器
// Redis 不可用时跳过当前测试，而不是失败；配合 -tags=integration 使用
func GetRedisConnector(t *testing.T) connector.RedisConnector {
	t.Helper()

	cfg := GetRedisConfig()
	conn, err := connector.NewRedis(cfg, connector.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create redis connector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Skipf("redis not available at %s: %v", cfg.Addr, err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

// GetRedisClient 获取原生 Redis 客户端
func GetRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	return GetRedisConnector(t).GetClient()
}

// FlushRedis 清空 Redis 数据库（慎用！）
func FlushRedis(t *testing.T, client *redis.Client) {
	t.Helper()
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
}
