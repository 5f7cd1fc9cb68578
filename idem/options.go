package idem

import (
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/connector"
	"github.com/ceyewan/aegis/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

// MiddlewareOption Gin 中间件选项函数
type MiddlewareOption func(*middlewareOptions)

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	logger    clog.Logger
	meter     metrics.Meter
	redisConn connector.RedisConnector
	store     Store
}

func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
}

// middlewareOptions Gin 中间件选项配置（内部使用，小写）
type middlewareOptions struct {
	headerKey string // 幂等键的 HTTP 头名称，默认 "X-Idempotency-Key"
}

// WithLogger 设置 Logger，自动添加 "idem" namespace
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		o.logger = logger.WithNamespace("idem")
	}
}

// WithMeter 设置 Meter，按 outcome（hit/executed/conflict）上报请求计数
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithRedisConnector 注入 Redis 连接器，Driver 为 "redis" 时必须提供
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		if conn != nil {
			o.redisConn = conn
		}
	}
}

// WithStore 注入自定义存储实现，设置后 Config.Driver 被忽略。
// 实现了 RefreshableStore 的存储自动获得锁续期能力。
func WithStore(store Store) Option {
	return func(o *options) {
		if store != nil {
			o.store = store
		}
	}
}

// WithHeaderKey 设置 Gin 中间件的幂等键 HTTP 头名称
// 默认为 "X-Idempotency-Key"
func WithHeaderKey(headerKey string) MiddlewareOption {
	return func(o *middlewareOptions) {
		if headerKey != "" {
			o.headerKey = headerKey
		}
	}
}
