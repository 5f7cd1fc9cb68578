package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/failure"
	"github.com/ceyewan/aegis/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	logger     clog.Logger
	meter      metrics.Meter
	clock      func() time.Time
	sleeper    func(ctx context.Context, d time.Duration) error
	rnd        *rand.Rand
	onAttempt  func(AttemptInfo)
	classifier failure.Classifier
}

func defaultOptions() *options {
	return &options{
		logger:  clog.Discard(),
		meter:   metrics.Discard(),
		clock:   time.Now,
		sleeper: defaultSleeper,
	}
}

// WithLogger 设置 Logger，自动添加 "retry" namespace
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = clog.Discard()
		} else {
			o.logger = logger.WithNamespace("retry")
		}
	}
}

// WithMeter 注入 metrics.Meter，用于上报尝试数、重试数与退避等待时长
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithClock 注入时钟，仅用于整体超时预算的计算。默认 time.Now。
// 测试中可注入假时钟得到确定性的超时行为。
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithSleeper 注入等待函数，引擎的所有退避等待都经由它执行。
// 默认实现基于 time.Timer 并响应 ctx 取消。测试中可注入
// 直接返回 nil 的 sleeper 以免真实等待。
func WithSleeper(sleeper func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		if sleeper != nil {
			o.sleeper = sleeper
		}
	}
}

// WithRand 注入随机源，用于抖动计算。默认使用按当前时间播种的私有源。
// 测试中注入固定种子的 *rand.Rand 可复现抖动序列。
func WithRand(rnd *rand.Rand) Option {
	return func(o *options) {
		if rnd != nil {
			o.rnd = rnd
		}
	}
}

// WithOnAttempt 注册失败尝试的观察回调。每次失败的尝试触发一次，
// 包括最后一次（此时 Delay 为 0）。回调内的 panic 会被吞掉，
// 不影响重试流程。
func WithOnAttempt(fn func(AttemptInfo)) Option {
	return func(o *options) {
		o.onAttempt = fn
	}
}

// WithClassifier 注入自定义故障分类器，规则详见 failure.Classify
func WithClassifier(classifier failure.Classifier) Option {
	return func(o *options) {
		o.classifier = classifier
	}
}

// defaultSleeper 基于 time.Timer 的等待实现，响应 ctx 取消。
func defaultSleeper(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
