// Package guard 把失败分类、重试与熔断组合成一条完整的出站调用防线。
//
// Execute 的控制流固定为：限流等待（可选）→ 熔断准入 → 重试序列。
// 熔断器包在重试序列外层，以整个序列的最终结果记账一次：序列内的
// 中间失败只驱动退避，不会逐次冲击熔断计数；序列被重试引擎判定为
// 最终失败时，熔断器才记一次失败。
//
// ## 基本使用
//
//	g, err := guard.New(&guard.Config{
//		Retry:   retry.Config{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond},
//		Breaker: breaker.Config{FailureThreshold: 5, ResetTimeout: 30 * time.Second},
//	}, guard.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = g.Execute(ctx, "orders-api", func(ctx context.Context) error {
//		return submitOrder(ctx, order)
//	})
//
// ## 带返回值
//
//	quote, err := guard.DoValue(ctx, g, "quotes-api", func(ctx context.Context) (Quote, error) {
//		return fetchQuote(ctx, symbol)
//	})
//
// 需要客户端限流时注入 Pacer（ratelimit.Limiter 直接满足该接口）：
//
//	g, _ := guard.New(cfg, guard.WithPacer(limiter))
package guard

import (
	"context"

	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/retry"
)

// ========================================
// 接口定义 (Interface Definition)
// ========================================

// Guard 出站调用防线。实现是并发安全的，可在多个 goroutine 中共享。
type Guard interface {
	// Execute 以 key 对应的防线执行 op：限流等待 → 熔断准入 → 重试序列。
	// 返回值与内层组件一致：最终成功为 nil；熔断拒绝可用
	// errors.Is(err, breaker.ErrOpenState) 匹配；其余情况为重试序列的
	// 最终错误。
	Execute(ctx context.Context, key string, op retry.Operation) error

	// State 返回 key 当前的熔断状态，透传自内层熔断器。
	State(key string) (breaker.State, error)

	// Stats 返回 key 的熔断状态快照，透传自内层熔断器。
	Stats(key string) (breaker.Stats, error)
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 防线配置，分别透传给内层的重试引擎与熔断器。
// 零值字段由各自组件填充默认值。
type Config struct {
	// Retry 重试策略配置
	Retry retry.Config `mapstructure:"retry" json:"retry" yaml:"retry"`

	// Breaker 熔断器配置
	Breaker breaker.Config `mapstructure:"breaker" json:"breaker" yaml:"breaker"`
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建防线。cfg 不可为 nil；子配置的校验由各自组件完成，
// 任一组件构建失败时返回其错误。
func New(cfg *Config, opts ...Option) (Guard, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	clone := *cfg
	return newGuard(&clone, opts...)
}

// Must 与 New 相同，失败时 panic。适合在程序初始化阶段使用。
func Must(cfg *Config, opts ...Option) Guard {
	g, err := New(cfg, opts...)
	if err != nil {
		panic("guard: create guard: " + err.Error())
	}
	return g
}

// DoValue 以 g 的防线执行带返回值的操作。
// 失败时返回 T 的零值与错误。
func DoValue[T any](ctx context.Context, g Guard, key string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Execute(ctx, key, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
