package guard

import (
	"context"
	"math/rand"
	"time"

	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/failure"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/retry"
)

// Option 组件初始化选项函数
type Option func(*options)

// Pacer 客户端限流器接口。Execute 在熔断准入之前调用 Wait，
// 阻塞到拿到令牌或 ctx 结束。ratelimit.Limiter 满足该接口。
type Pacer interface {
	Wait(ctx context.Context, key string) error
}

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	logger clog.Logger
	meter  metrics.Meter
	pacer  Pacer

	// 注入预构建组件时优先使用，转发类选项只作用于 guard 自建的组件
	retryer retry.Retryer
	breaker breaker.Breaker

	classifier    failure.Classifier
	clock         func() time.Time
	sleeper       func(ctx context.Context, d time.Duration) error
	rnd           *rand.Rand
	onAttempt     func(retry.AttemptInfo)
	onStateChange func(key string, from, to breaker.State, reason string)
	fallback      breaker.FallbackFunc
}

func defaultOptions() *options {
	return &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
		clock:  time.Now,
	}
}

// WithLogger 设置 Logger，传入 nil 时使用 clog.Discard()
// 内部会自动添加 namespace: "guard"，并转发给自建的重试引擎与熔断器
// （它们在其下追加各自的 namespace）
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = clog.Discard()
		} else {
			o.logger = logger.WithNamespace("guard")
		}
	}
}

// WithMeter 注入 metrics.Meter，同时转发给自建的内层组件
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithPacer 注入客户端限流器，Execute 在熔断准入之前等待令牌
func WithPacer(p Pacer) Option {
	return func(o *options) {
		o.pacer = p
	}
}

// WithRetryer 注入预构建的重试引擎，取代按 Config.Retry 自建。
// 注入后 WithClassifier/WithClock/WithSleeper/WithRand/WithOnAttempt
// 不再作用于重试侧。
func WithRetryer(r retry.Retryer) Option {
	return func(o *options) {
		o.retryer = r
	}
}

// WithBreaker 注入预构建的熔断器，取代按 Config.Breaker 自建。
// 多条防线共享一组熔断门控时使用。
func WithBreaker(b breaker.Breaker) Option {
	return func(o *options) {
		o.breaker = b
	}
}

// WithClassifier 注入自定义故障分类器，转发给自建的重试引擎与熔断器，
// 并用于 Execute 的结果指标归类
func WithClassifier(classifier failure.Classifier) Option {
	return func(o *options) {
		o.classifier = classifier
	}
}

// WithClock 注入时钟，转发给自建的重试引擎与熔断器。默认 time.Now。
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithSleeper 注入退避等待实现，转发给自建的重试引擎
func WithSleeper(sleeper func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		o.sleeper = sleeper
	}
}

// WithRand 注入随机源，转发给自建的重试引擎（抖动去随机化）
func WithRand(rnd *rand.Rand) Option {
	return func(o *options) {
		o.rnd = rnd
	}
}

// WithOnAttempt 注册单次尝试观察回调，转发给自建的重试引擎
func WithOnAttempt(fn func(retry.AttemptInfo)) Option {
	return func(o *options) {
		o.onAttempt = fn
	}
}

// WithOnStateChange 注册熔断状态转换回调，转发给自建的熔断器
func WithOnStateChange(fn func(key string, from, to breaker.State, reason string)) Option {
	return func(o *options) {
		o.onStateChange = fn
	}
}

// WithFallback 设置熔断降级函数，转发给自建的熔断器
func WithFallback(fallback breaker.FallbackFunc) Option {
	return func(o *options) {
		o.fallback = fallback
	}
}
