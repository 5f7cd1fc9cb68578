// Package breaker 提供按键隔离的熔断器，保护调用方免受持续故障的下游拖累。
//
// 默认熔断器采用连续失败计数的门控语义：Closed 状态下连续
// FailureThreshold 次被计数的失败触发熔断进入 Open；Open 状态下
// 调用快速失败（返回 KindCircuitOpen 故障，不触达下游）；
// ResetTimeout 到期后的下一次调用进入 HalfOpen 探测，连续
// SuccessThreshold 次成功恢复 Closed，任何一次被计数的失败立即
// 重新熔断。是否计数由 failure 包的分类结果决定：只有可重试的
// 故障计数，永久性失败（如参数错误）既不累计也不清零。
//
// ## 基本使用
//
//	brk, err := breaker.New(&breaker.Config{
//		FailureThreshold: 5,
//		ResetTimeout:     30 * time.Second,
//		SuccessThreshold: 3,
//	}, breaker.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = brk.Execute(ctx, "orders-api", func(ctx context.Context) error {
//		return callOrdersAPI(ctx)
//	})
//	if errors.Is(err, breaker.ErrOpenState) {
//		// 熔断中，快速失败
//	}
//
// ## 按键隔离
//
// 每个 key 拥有独立的状态机，一个下游的熔断不影响其他下游：
//
//	brk.Execute(ctx, "orders-api", submitOrder)
//	brk.Execute(ctx, "quotes-api", fetchQuote)
//
// ## gRPC 拦截器
//
//	conn, err := grpc.NewClient(target,
//		grpc.WithChainUnaryInterceptor(brk.UnaryClientInterceptor()),
//		grpc.WithChainStreamInterceptor(brk.StreamClientInterceptor()),
//	)
//
// 需要失败率滑动窗口语义时使用 NewSlidingRatio，两种门控实现同一
// Breaker 接口，可互换。
package breaker

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

// ========================================
// 接口定义 (Interface Definition)
// ========================================

// Breaker 熔断器接口。实现是并发安全的，可在多个 goroutine 中共享。
type Breaker interface {
	// Execute 以 key 对应的门控执行 op。
	// 熔断中直接返回 KindCircuitOpen 故障（可用 errors.Is(err,
	// ErrOpenState) 匹配），不调用 op；其余情况透传 op 的返回值。
	Execute(ctx context.Context, key string, op func(ctx context.Context) error) error

	// State 返回 key 当前的状态。未见过的 key 视为 Closed。
	State(key string) (State, error)

	// Stats 返回 key 的状态快照。只读，绝不推动状态机：
	// Open 且 ResetTimeout 已到期时快照报告 HalfOpen（待晋升），
	// 但晋升只在下一次 Execute 时真正发生。
	Stats(key string) (Stats, error)

	// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器，
	// 按 InterceptorOption 配置的策略生成熔断 key。
	UnaryClientInterceptor(opts ...InterceptorOption) grpc.UnaryClientInterceptor

	// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器。
	// 门控只统计建流结果，不跟踪流上的后续消息。
	StreamClientInterceptor(opts ...InterceptorOption) grpc.StreamClientInterceptor
}

// State 熔断器状态
type State int

const (
	// StateClosed 闭合状态（正常）
	StateClosed State = iota
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
	// StateOpen 打开状态（熔断中）
	StateOpen
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Stats 状态快照
type Stats struct {
	// State 当前状态（含待晋升的 HalfOpen 视图）
	State State
	// ConsecutiveFailures Closed 状态下累计的连续被计数失败数
	ConsecutiveFailures int
	// ConsecutiveSuccesses HalfOpen 状态下累计的连续成功数
	ConsecutiveSuccesses int
	// TimeUntilReset Open 状态距离允许探测还需等待的时长，其余状态为 0
	TimeUntilReset time.Duration
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 连续失败门控的配置
type Config struct {
	// FailureThreshold 触发熔断的连续失败次数（默认：5）
	FailureThreshold int `mapstructure:"failure_threshold" json:"failure_threshold" yaml:"failure_threshold"`

	// ResetTimeout 熔断后距离允许探测的等待时长（默认：30s）
	ResetTimeout time.Duration `mapstructure:"reset_timeout" json:"reset_timeout" yaml:"reset_timeout"`

	// SuccessThreshold 半开状态下恢复闭合所需的连续成功次数（默认：3）
	SuccessThreshold int `mapstructure:"success_threshold" json:"success_threshold" yaml:"success_threshold"`
}

func (c *Config) setDefaults() {
	if c == nil {
		return
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 3
	}
}

func (c *Config) validate() error {
	if c == nil {
		return ErrConfigNil
	}
	return nil
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建连续失败门控的熔断器。cfg 不可为 nil；零值字段使用默认值。
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	clone := *cfg
	clone.setDefaults()
	if err := clone.validate(); err != nil {
		return nil, err
	}
	return newCircuitBreaker(&clone, opts...), nil
}

// Must 与 New 相同，失败时 panic。适合在程序初始化阶段使用。
func Must(cfg *Config, opts ...Option) Breaker {
	b, err := New(cfg, opts...)
	if err != nil {
		panic("breaker: create breaker: " + err.Error())
	}
	return b
}

// DoValue 以 b 的门控执行带返回值的操作。
// 被熔断或 op 失败时返回 T 的零值与错误。
func DoValue[T any](ctx context.Context, b Breaker, key string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, key, func(ctx context.Context) error {
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
