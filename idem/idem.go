// Package idem 提供了幂等性组件，用于确保操作的"一次且仅一次"执行。
//
// 重试会把一次失败的调用变成多次到达的请求：提交订单超时后重试，
// 服务端可能已经受理了第一次提交。idem 是这类副作用的防护层，它提供了：
//   - 统一的 Idempotency 接口，支持手动调用与 Gin 中间件
//   - 结果缓存：首次执行的结果被序列化缓存，重复请求直接返回缓存数据
//   - 并发控制：带令牌的锁防止同一幂等键的并发穿透，可选等待首个请求的结果
//   - 后端可配置：支持 Redis（跨进程）/ Memory（单机）
//   - 序列化可配置：JSON（默认）/ MessagePack
//
// ## 基本使用
//
//	idem, _ := idem.New(&idem.Config{
//	    Driver:     idem.DriverRedis,
//	    Prefix:     "myapp:idem:",
//	    DefaultTTL: 24 * time.Hour,
//	}, idem.WithRedisConnector(redisConn), idem.WithLogger(logger))
//	defer idem.Close()
//
//	result, err := idem.Execute(ctx, "order:create:12345", func(ctx context.Context) (any, error) {
//	    // 业务逻辑，只有首个请求会执行
//	    return map[string]any{"order_id": "12345"}, nil
//	})
//
// ## 与重试配合
//
// 幂等键必须在重试循环外生成，同一次业务操作的所有重试共享一个键：
//
//	key := "order:submit:" + orderID
//	err := g.Execute(ctx, "exchange", func(ctx context.Context) error {
//	    _, err := idem.Execute(ctx, key, submitOrder)
//	    return err
//	})
//
// ## 并发等待
//
// 默认情况下，同一幂等键的并发请求立即收到 ErrConcurrentRequest。
// 设置 WaitTimeout 后，后到的请求会轮询等待首个请求的结果：
//
//	idem.New(&idem.Config{
//	    Driver:      idem.DriverMemory,
//	    WaitTimeout: 3 * time.Second,   // 最多等 3s
//	    WaitInterval: 20 * time.Millisecond,
//	})
//
// ## Gin 中间件
//
//	r := gin.New()
//	r.POST("/orders", idemComp.GinMiddleware(), createOrderHandler)
//	// 客户端带 X-Idempotency-Key 头的请求自动去重，2xx 响应被缓存回放
package idem

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/idem/serializer"
	"github.com/ceyewan/aegis/xerrors"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Idempotency 幂等性组件核心接口
type Idempotency interface {
	// Execute 执行幂等操作
	//
	// 工作流程：
	//  1. 如果 key 已存在且完成 → 直接返回缓存结果
	//  2. 如果 key 正在处理中 → 返回 ErrConcurrentRequest
	//     （WaitTimeout > 0 时先等待结果或锁可用）
	//  3. 如果 key 不存在 → 执行 fn 并缓存结果；fn 返回错误时不缓存，
	//     锁被释放，后续相同请求可以重试
	//
	// 首个请求拿到 fn 的原始返回值；后续请求拿到经过序列化往返的副本
	// （例如 JSON 下结构体会变成 map[string]any）。
	Execute(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error)

	// Consume 用于消息消费的幂等处理
	//
	// 与 Execute 的区别：不缓存结果，只记录"已处理"标记。
	//
	// 返回：
	//   - executed: 本次是否执行了 fn（false 表示此前已消费过）
	//   - 错误：ErrKeyEmpty, ErrConcurrentRequest 等
	Consume(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (executed bool, err error)

	// GinMiddleware 创建 Gin 幂等性中间件
	//
	// 工作原理：
	//  1. 从 HTTP 请求头 X-Idempotency-Key 提取幂等键（无键的请求直接放行）
	//  2. 缓存命中时回放缓存的响应（状态码、响应头、响应体）
	//  3. 未命中时执行 handler，2xx 响应被缓存；非 2xx 不缓存，允许客户端重试
	//  4. 并发重复请求收到 409 Conflict
	GinMiddleware(opts ...MiddlewareOption) gin.HandlerFunc

	// Close 释放组件持有的资源，不关闭注入的 Redis 连接器
	Close() error
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建幂等性组件实例
//
// 参数：
//   - cfg: 幂等性配置，不可为 nil（不会被修改）
//   - opts: 可选配置，如 WithLogger(), WithRedisConnector()
//
// 返回：
//   - Idempotency 组件实例
//   - 错误：缺少必要连接器或配置非法
//
// 使用示例：
//
//	idem, err := idem.New(&idem.Config{
//	    Driver:     idem.DriverRedis,
//	    Prefix:     "myapp:idem:",
//	    DefaultTTL: 24 * time.Hour,
//	    LockTTL:    30 * time.Second,
//	}, idem.WithRedisConnector(redisConn), idem.WithLogger(logger))
func New(cfg *Config, opts ...Option) (Idempotency, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	clone := *cfg
	clone.setDefaults()
	if err := clone.validate(); err != nil {
		return nil, err
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	opt.applyDefaults()

	ser, err := serializer.New(clone.Serializer)
	if err != nil {
		return nil, xerrors.Wrapf(ErrConfigInvalid, "serializer %q", clone.Serializer)
	}

	var store Store
	driverName := string(clone.Driver)
	switch {
	case opt.store != nil:
		store = opt.store
		driverName = "custom"
	case clone.Driver == DriverRedis:
		if opt.redisConn == nil {
			return nil, ErrConnectorNil
		}
		store = newRedisStore(opt.redisConn, clone.Prefix)
	default:
		store, err = newMemoryStore(clone.Prefix, clone.Capacity)
		if err != nil {
			return nil, err
		}
	}

	logger := opt.logger.With(clog.String("driver", driverName))
	logger.Info("idempotency component created",
		clog.String("prefix", clone.Prefix),
		clog.String("serializer", clone.Serializer),
		clog.Duration("default_ttl", clone.DefaultTTL),
		clog.Duration("lock_ttl", clone.LockTTL))

	return newIdempotency(&clone, store, ser, logger, newIdemMetrics(opt.meter)), nil
}

// Must 创建幂等性组件实例，失败时 panic。
// 适用于程序初始化阶段。
func Must(cfg *Config, opts ...Option) Idempotency {
	i, err := New(cfg, opts...)
	if err != nil {
		panic("idem: create idempotency: " + err.Error())
	}
	return i
}
