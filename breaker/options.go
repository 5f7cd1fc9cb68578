package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/failure"
	"github.com/ceyewan/aegis/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

// FallbackFunc 降级函数类型
// 当熔断器打开时，可以执行自定义的降级逻辑
// 参数:
//   - ctx: 上下文
//   - key: 熔断键
//   - err: 原始错误（即 ErrOpenState）
//
// 返回:
//   - error: 降级逻辑的错误，nil 表示降级成功
type FallbackFunc func(ctx context.Context, key string, err error) error

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	logger        clog.Logger
	meter         metrics.Meter
	clock         func() time.Time
	classifier    failure.Classifier
	onStateChange func(key string, from, to State, reason string)
	fallback      FallbackFunc
}

func defaultOptions() *options {
	return &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
		clock:  time.Now,
	}
}

// WithLogger 设置 Logger，传入 nil 时使用 clog.Discard()
// 内部会自动添加 namespace: "breaker"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = clog.Discard()
		} else {
			o.logger = logger.WithNamespace("breaker")
		}
	}
}

// WithMeter 注入 metrics.Meter，用于上报请求数、拒绝数与状态转换
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithClock 注入时钟，用于 Open 状态的到期判定。默认 time.Now。
// 测试中可注入假时钟推动 Open → HalfOpen 而无需真实等待。
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithClassifier 注入自定义故障分类器，决定哪些错误计入熔断统计。
// 分类规则详见 failure.Classify。
func WithClassifier(classifier failure.Classifier) Option {
	return func(o *options) {
		o.classifier = classifier
	}
}

// WithOnStateChange 注册状态转换回调。回调在持锁区之外调用，
// panic 会被吞掉；回调内可安全地调用 State/Stats。
//
// 使用示例:
//
//	brk, _ := breaker.New(cfg,
//		breaker.WithOnStateChange(func(key string, from, to breaker.State, reason string) {
//			alerting.Notify("breaker %s: %s -> %s (%s)", key, from, to, reason)
//		}),
//	)
func WithOnStateChange(fn func(key string, from, to State, reason string)) Option {
	return func(o *options) {
		o.onStateChange = fn
	}
}

// WithFallback 设置降级函数
// 当熔断器打开时，会调用此函数取代快速失败
//
// 使用示例:
//
//	brk, _ := breaker.New(cfg,
//		breaker.WithFallback(func(ctx context.Context, key string, err error) error {
//			// 返回缓存数据或默认值
//			logger.Info("circuit breaker open, using fallback", clog.String("key", key))
//			return nil
//		}),
//	)
func WithFallback(fallback FallbackFunc) Option {
	return func(o *options) {
		o.fallback = fallback
	}
}
