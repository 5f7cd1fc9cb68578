// Package connector 为 aegis 提供统一的连接管理能力。
//
// aegis 中需要外部连接的组件（如 idem 的 Redis 存储、testkit 的集成测试
// 夹具）都不自行拨号，而是借用一个 Connector 管理好的连接。
//
// 核心特性：
//   - 统一抽象：通过 Connector 接口提供一致的连接管理 API
//   - 类型安全：通过 TypedConnector[T] 泛型接口确保编译时类型检查
//   - 健康检查：Ping 验证连接可用性，结果缓存供 IsHealthy 快速读取
//   - 并发安全：所有公开方法均为并发安全，支持多协程同时访问
//   - 资源管理：遵循"谁创建，谁负责释放"原则，Close() 应在应用层调用
//
// 设计理念：
//   - 接口优先：定义清晰的接口契约，实现细节可替换
//   - 显式依赖注入：通过构造函数注入依赖，避免全局状态
//   - 幂等连接：Connect() 方法可安全重复调用
//   - 延迟连接：NewRedis() 创建连接器但不立即建立连接，Connect() 时才连接
//
// 基本使用：
//
//	cfg := &connector.RedisConfig{
//		Addr:     "127.0.0.1:6379",
//		Password: "",
//		DB:       0,
//	}
//	conn, err := connector.NewRedis(cfg, connector.WithLogger(logger))
//	if err != nil {
//		panic(err)
//	}
//	defer conn.Close()
//
//	// 建立连接（幂等，可多次调用）
//	if err := conn.Connect(ctx); err != nil {
//		panic(err)
//	}
//
//	// 获取类型安全的客户端
//	client := conn.GetClient()
//	result, err := client.Get(ctx, "key").Result()
//
// 资源所有权：
//
//	Connector 拥有底层连接的生命周期，应通过 defer 确保 Close() 被调用。
//	Component（如 idem 的 Redis 存储）仅借用 Connector，不应调用 Close()。
//	应用层应按照 LIFO 顺序释放资源：先关闭依赖 Connector 的组件，再关闭 Connector。
package connector

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// 基础接口
// =============================================================================

// Connector 定义所有连接器的通用行为。
//
// 所有连接器必须实现此接口，确保一致的连接管理体验。
// 接口方法均为并发安全，可从多个协程同时调用。
type Connector interface {
	// Connect 建立连接并验证连通性。
	//
	// 此方法是幂等的，可安全多次调用。连接过程阻塞直到成功、
	// 重试次数耗尽或 ctx 取消。
	//
	// 返回错误：
	//   - ErrAlreadyClosed: 连接器已关闭
	//   - 其余错误保留底层原因，并带上连接器名称上下文
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源。
	//
	// 此方法是幂等的，可安全多次调用，重复调用返回 nil。
	//
	// 重要：应在应用层通过 defer 确保调用，遵循"谁创建，谁负责释放"原则。
	Close() error

	// HealthCheck 检查连接健康状态。
	//
	// 通过发送测试请求验证连接可用性。此方法会更新内部健康状态缓存，
	// 可通过 IsHealthy() 快速读取。
	//
	// 返回错误：
	//   - ErrAlreadyClosed: 连接器已关闭
	//   - 其余错误保留底层原因，并带上连接器名称上下文
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回缓存的健康状态。
	//
	// 此方法无阻塞，直接返回最近一次 Connect()/HealthCheck() 的结果。
	// 对于实时健康检查，应使用 HealthCheck() 方法。
	IsHealthy() bool

	// Name 返回连接实例名称。
	//
	// 名称用于日志记录和指标标识，应在配置中唯一标识此连接器实例。
	Name() string
}

// =============================================================================
// 泛型接口
// =============================================================================

// TypedConnector 提供类型安全的客户端访问。
//
// 此接口组合了 Connector 基础接口，并添加了 GetClient() 方法
// 用于获取特定类型的客户端。所有具体连接器接口都应基于此定义。
//
// 类型参数 T 是客户端类型，如 *redis.Client。
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端实例。
	//
	// 调用者应通过此客户端执行实际的数据操作。
	// 注意：Close() 之后客户端不再可用。
	GetClient() T
}

// =============================================================================
// 具体连接器接口
// =============================================================================

// RedisConnector Redis 连接器接口。
//
// 提供对 Redis 服务器的连接管理，支持连接池、Pipeline、事务等特性。
type RedisConnector interface {
	TypedConnector[*redis.Client]
}
