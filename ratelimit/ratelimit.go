// Package ratelimit 提供客户端侧的主动限速。
//
// 被动的限流反馈（服务端 429、RetryAfter）由 failure 的 KindRateLimited
// 表达；ratelimit 是它的主动一半：在请求发出之前按本地令牌桶削峰，
// 让客户端根本不去触碰服务端的阈值。
//
// 限流规则在配置中声明，调用方只报 key：
//   - Rules 按 key 精确匹配，其次按最长前缀匹配（规则键是 key 的前缀）
//   - 都未命中时使用 Default；Default 为零值则该 key 不限流
//
// 每个 key 独享一个令牌桶（基于 golang.org/x/time/rate），
// 空闲桶按 CleanupInterval/IdleTimeout 周期回收。
//
// ## 基本使用
//
//	limiter, _ := ratelimit.New(&ratelimit.Config{
//	    Default: ratelimit.Limit{Rate: 50, Burst: 100},
//	    Rules: map[string]ratelimit.Limit{
//	        "orders:": {Rate: 5, Burst: 10}, // orders:submit、orders:cancel 共用此规则
//	    },
//	}, ratelimit.WithLogger(logger))
//	defer limiter.Close()
//
//	allowed, _ := limiter.Allow(ctx, "orders:submit")
//	if !allowed {
//	    return "rate limit exceeded"
//	}
//
// ## 与 guard 组合
//
// Limiter 的 Wait 签名即 guard 的 Pacer 契约，可直接注入：
//
//	g, _ := guard.New(cfg, guard.WithPacer(limiter))
//
// ## Gin 中间件
//
//	r := gin.New()
//	r.Use(ratelimit.GinMiddleware(limiter, nil)) // 默认按客户端 IP 限流
//
// ## 可观测性
//
// 通过注入 Logger 和 Meter 实现统一的日志和指标收集：
//
//	limiter, _ := ratelimit.New(cfg,
//	    ratelimit.WithLogger(logger),
//	    ratelimit.WithMeter(meter),
//	)
package ratelimit

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/xerrors"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Limit 定义限流规则（令牌桶算法）
type Limit struct {
	Rate  float64 `mapstructure:"rate" json:"rate" yaml:"rate"`    // 令牌生成速率（每秒生成多少个令牌）
	Burst int     `mapstructure:"burst" json:"burst" yaml:"burst"` // 令牌桶容量（突发最大请求数）
}

// valid 报告规则是否可用于建桶
func (l Limit) valid() bool {
	return l.Rate > 0 && l.Burst > 0
}

// zero 报告规则是否完全未设置
func (l Limit) zero() bool {
	return l.Rate == 0 && l.Burst == 0
}

// Limiter 限流器核心接口。
//
// 接口方法均为并发安全。Wait 的签名满足 guard.Pacer，
// 限流器可直接作为 guard 的 pacer 注入。
type Limiter interface {
	// Allow 尝试获取 1 个令牌（非阻塞）。
	// key 是限流标识（如 "orders:submit"、IP、UserID）。
	// 返回 allowed（是否允许）与 error（调用错误，如空 key）。
	// key 未命中任何规则时恒为允许。
	Allow(ctx context.Context, key string) (bool, error)

	// AllowN 尝试获取 N 个令牌（非阻塞）
	AllowN(ctx context.Context, key string, n int) (bool, error)

	// Wait 阻塞直到获取 1 个令牌、ctx 取消或等待必然超出 ctx 期限。
	// key 未命中任何规则时立即返回 nil。
	Wait(ctx context.Context, key string) error

	// LimitFor 返回 key 命中的限流规则。
	// ok 为 false 表示没有规则约束该 key（不限流）。
	LimitFor(key string) (limit Limit, ok bool)

	// Close 停止后台清理。幂等，可安全重复调用。
	Close() error
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 限流配置
type Config struct {
	// Default 未命中任何规则时的兜底规则。
	// 保持零值表示未配置规则的 key 不限流。
	Default Limit `mapstructure:"default" json:"default" yaml:"default"`

	// Rules 按 key 匹配的限流规则。
	// 先精确匹配，再取最长的前缀匹配（规则键是调用 key 的前缀），
	// 如 "orders:" 会命中 "orders:submit" 与 "orders:cancel"。
	Rules map[string]Limit `mapstructure:"rules" json:"rules" yaml:"rules"`

	// CleanupInterval 清理空闲令牌桶的间隔（默认：1 分钟）
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" json:"cleanup_interval" yaml:"cleanup_interval"`

	// IdleTimeout 令牌桶空闲多久后被回收（默认：5 分钟）
	IdleTimeout time.Duration `mapstructure:"idle_timeout" json:"idle_timeout" yaml:"idle_timeout"`
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c == nil {
		return
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 1 * time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

// validate 校验配置
func (c *Config) validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if !c.Default.zero() && !c.Default.valid() {
		return xerrors.Wrapf(ErrConfigInvalid, "default limit rate=%v burst=%d", c.Default.Rate, c.Default.Burst)
	}
	for key, limit := range c.Rules {
		if key == "" {
			return xerrors.Wrap(ErrConfigInvalid, "rule key is empty")
		}
		if !limit.valid() {
			return xerrors.Wrapf(ErrConfigInvalid, "rule %q rate=%v burst=%d", key, limit.Rate, limit.Burst)
		}
	}
	return nil
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建限流器。cfg 不可为 nil 且不会被修改；零值的时间字段使用默认值。
func New(cfg *Config, opts ...Option) (Limiter, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	clone := cloneConfig(cfg)
	clone.setDefaults()
	if err := clone.validate(); err != nil {
		return nil, err
	}

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	return newStandalone(clone, opt)
}

// Must 与 New 相同，失败时 panic。适合在程序初始化阶段使用。
func Must(cfg *Config, opts ...Option) Limiter {
	l, err := New(cfg, opts...)
	if err != nil {
		panic("ratelimit: create limiter: " + err.Error())
	}
	return l
}

// cloneConfig 深拷贝配置，Rules 独立于调用方的 map
func cloneConfig(cfg *Config) *Config {
	clone := *cfg
	if cfg.Rules != nil {
		clone.Rules = make(map[string]Limit, len(cfg.Rules))
		for k, v := range cfg.Rules {
			clone.Rules[k] = v
		}
	}
	return &clone
}
