// Package retry 提供带抖动指数退避的重试引擎。
//
// 引擎按 failure 包的分类结果决定是否重试：可重试故障按
// InitialDelay × Multiplier^(n-1) 计算退避（受 MaxDelay 封顶），
// 服务端通过 Retry-After 等方式给出建议等待时长时直接采用该值；
// 不可重试故障与重试耗尽时立即返回最后一次真实错误，绝不合成
// "gave up" 类错误。
//
// ## 基本使用
//
//	r, err := retry.New(&retry.Config{
//		MaxAttempts:  5,
//		InitialDelay: 100 * time.Millisecond,
//		MaxDelay:     10 * time.Second,
//		Multiplier:   2.0,
//	}, retry.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = r.Do(ctx, func(ctx context.Context) error {
//		return callDownstream(ctx)
//	})
//
// ## 带返回值的重试
//
//	quote, err := retry.DoValue(ctx, r, func(ctx context.Context) (*Quote, error) {
//		return fetchQuote(ctx, symbol)
//	})
//
// ## 可观测性
//
// 通过 retry.WithOnAttempt 注册回调可以观察每一次失败的尝试；
// 通过 retry.WithMeter 注入 metrics.Meter 后，引擎上报尝试数、
// 重试数、耗尽数与退避等待时长分布。
package retry

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/xerrors"
)

// Operation 一次可重试的调用。ctx 携带整体超时（配置了 OverallTimeout 时）。
type Operation func(ctx context.Context) error

// Retryer 重试引擎接口。实现是并发安全的，可在多个 goroutine 中共享。
type Retryer interface {
	// Do 执行 op，失败且可重试时按退避策略重试。
	//
	// 返回值：
	//   - 任意一次尝试成功时返回 nil；
	//   - 分类为不可重试的故障立即返回，不再尝试；
	//   - 尝试次数耗尽时返回最后一次真实错误；
	//   - 配置的 OverallTimeout 到期时返回 KindTimeout 故障，
	//     其 cause 链保留最后一次真实错误；
	//   - ctx 被取消时返回 ctx.Err()。
	Do(ctx context.Context, op Operation) error
}

// AttemptInfo 描述一次失败的尝试，通过 WithOnAttempt 回调观察。
type AttemptInfo struct {
	// Attempt 本次尝试的序号，从 1 开始
	Attempt int
	// MaxAttempts 配置的最大尝试次数
	MaxAttempts int
	// Delay 下一次尝试前的等待时长；本次为最后一次尝试时为 0
	Delay time.Duration
	// Err 本次尝试返回的错误
	Err error
}

// Config 重试引擎配置
type Config struct {
	// MaxAttempts 最大尝试次数（含首次调用），默认 3。
	// 设为 1 表示只调用一次、绝不重试。
	MaxAttempts int `mapstructure:"max_attempts" json:"max_attempts" yaml:"max_attempts"`

	// InitialDelay 首次重试前的基础等待时长，默认 100ms
	InitialDelay time.Duration `mapstructure:"initial_delay" json:"initial_delay" yaml:"initial_delay"`

	// MaxDelay 退避等待的上限，默认 30s，必须不小于 InitialDelay
	MaxDelay time.Duration `mapstructure:"max_delay" json:"max_delay" yaml:"max_delay"`

	// Multiplier 退避倍率，默认 2.0，必须不小于 1.0
	Multiplier float64 `mapstructure:"multiplier" json:"multiplier" yaml:"multiplier"`

	// Jitter 是否在退避时长上叠加随机抖动（均匀取 [0, 0.25×base]），
	// 默认开启；显式设为 false 可得到确定性退避
	Jitter *bool `mapstructure:"jitter" json:"jitter" yaml:"jitter"`

	// OverallTimeout 整个重试序列（含所有等待）的时间上限，0 表示不限制
	OverallTimeout time.Duration `mapstructure:"overall_timeout" json:"overall_timeout" yaml:"overall_timeout"`
}

func (c *Config) setDefaults() {
	if c == nil {
		return
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
}

func (c *Config) validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.Multiplier < 1.0 {
		return xerrors.Wrapf(ErrConfigInvalid, "multiplier %.2f must be >= 1.0", c.Multiplier)
	}
	if c.MaxDelay < c.InitialDelay {
		return xerrors.Wrapf(ErrConfigInvalid, "max_delay %s must be >= initial_delay %s", c.MaxDelay, c.InitialDelay)
	}
	return nil
}

// jitterEnabled 报告是否启用抖动，未显式配置时默认开启。
func (c *Config) jitterEnabled() bool {
	return c.Jitter == nil || *c.Jitter
}

// New 创建重试引擎。cfg 不可为 nil；零值字段使用默认值。
func New(cfg *Config, opts ...Option) (Retryer, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	clone := *cfg
	clone.setDefaults()
	if err := clone.validate(); err != nil {
		return nil, err
	}
	return newRetryer(&clone, opts...), nil
}

// Must 与 New 相同，失败时 panic。适合在程序初始化阶段使用。
func Must(cfg *Config, opts ...Option) Retryer {
	r, err := New(cfg, opts...)
	if err != nil {
		panic("retry: create retryer: " + err.Error())
	}
	return r
}

// DoValue 执行带返回值的操作并按 r 的策略重试。
// 失败时返回 T 的零值与错误，语义与 Retryer.Do 一致。
func DoValue[T any](ctx context.Context, r Retryer, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
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
