package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/failure"
	"github.com/ceyewan/aegis/xerrors"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/grpc"
)

// SlidingConfig 失败率滑动窗口门控的配置
type SlidingConfig struct {
	// MaxRequests 半开状态下允许通过的最大请求数（默认：1）
	// 用于探测服务是否恢复
	MaxRequests uint32 `mapstructure:"max_requests" json:"max_requests" yaml:"max_requests"`

	// Interval 闭合状态下的统计周期（默认：0，不清空统计）
	// 设置后会定期清空计数器
	Interval time.Duration `mapstructure:"interval" json:"interval" yaml:"interval"`

	// Timeout 打开状态持续时间（默认：60s）
	// 超时后进入半开状态进行探测
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`

	// FailureRatio 失败率阈值（默认：0.6，即 60%）
	// 当失败率超过此值时触发熔断
	FailureRatio float64 `mapstructure:"failure_ratio" json:"failure_ratio" yaml:"failure_ratio"`

	// MinimumRequests 触发熔断的最小请求数（默认：10）
	// 请求数少于此值时不会触发熔断
	MinimumRequests uint32 `mapstructure:"minimum_requests" json:"minimum_requests" yaml:"minimum_requests"`
}

func (c *SlidingConfig) setDefaults() {
	if c == nil {
		return
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = 0.6
	}
	if c.MinimumRequests == 0 {
		c.MinimumRequests = 10
	}
}

func (c *SlidingConfig) validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.FailureRatio > 1 {
		return xerrors.Wrapf(ErrConfigInvalid, "failure_ratio %.2f must be <= 1.0", c.FailureRatio)
	}
	return nil
}

// NewSlidingRatio 创建失败率滑动窗口门控的熔断器，底层为 sony/gobreaker。
// 与默认的连续失败门控不同，它按窗口内的失败率触发熔断，且任何错误
// 都计入统计（不做 failure 分类过滤）；WithClassifier 与 WithClock
// 对该实现无效。Stats 的 TimeUntilReset 始终为 0（gobreaker 不暴露）。
func NewSlidingRatio(cfg *SlidingConfig, opts ...Option) (Breaker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	clone := *cfg
	clone.setDefaults()
	if err := clone.validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &slidingBreaker{
		cfg:           &clone,
		logger:        o.logger,
		metrics:       newBreakerMetrics(o.meter),
		onStateChange: o.onStateChange,
		fallback:      o.fallback,
	}, nil
}

// slidingBreaker gobreaker 适配实现（非导出）
type slidingBreaker struct {
	cfg           *SlidingConfig
	logger        clog.Logger
	metrics       *breakerMetrics
	onStateChange func(key string, from, to State, reason string)
	fallback      FallbackFunc

	// 按键隔离的熔断器管理
	breakers sync.Map // map[string]*gobreaker.CircuitBreaker[any]
}

// Execute 执行受熔断保护的操作
func (sb *slidingBreaker) Execute(ctx context.Context, key string, op func(ctx context.Context) error) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if op == nil {
		return ErrNilOperation
	}

	cb := sb.getOrCreateBreaker(key)
	sb.metrics.recordRequest(ctx, key)

	_, err := cb.Execute(func() (any, error) {
		return nil, op(ctx)
	})
	if err == nil {
		sb.metrics.recordSuccess(ctx, key)
		return nil
	}
	if xerrors.Is(err, gobreaker.ErrOpenState) || xerrors.Is(err, gobreaker.ErrTooManyRequests) {
		sb.metrics.recordReject(ctx, key)
		sb.logger.Debug("request rejected, circuit open",
			clog.String("key", key),
			clog.Error(err))
		if sb.fallback != nil {
			return sb.fallback(ctx, key, ErrOpenState)
		}
		return failure.CircuitOpen().WithCause(err)
	}
	sb.metrics.recordFailure(ctx, key, failure.Classify(err, nil).Kind())
	return err
}

// State 获取指定键的熔断器状态
func (sb *slidingBreaker) State(key string) (State, error) {
	if key == "" {
		return StateClosed, ErrKeyEmpty
	}
	val, ok := sb.breakers.Load(key)
	if !ok {
		return StateClosed, nil
	}
	return fromGobreakerState(val.(*gobreaker.CircuitBreaker[any]).State()), nil
}

// Stats 获取指定键的状态快照。TimeUntilReset 恒为 0。
func (sb *slidingBreaker) Stats(key string) (Stats, error) {
	if key == "" {
		return Stats{}, ErrKeyEmpty
	}
	val, ok := sb.breakers.Load(key)
	if !ok {
		return Stats{State: StateClosed}, nil
	}
	cb := val.(*gobreaker.CircuitBreaker[any])
	counts := cb.Counts()
	return Stats{
		State:                fromGobreakerState(cb.State()),
		ConsecutiveFailures:  int(counts.ConsecutiveFailures),
		ConsecutiveSuccesses: int(counts.ConsecutiveSuccesses),
	}, nil
}

// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
func (sb *slidingBreaker) UnaryClientInterceptor(opts ...InterceptorOption) grpc.UnaryClientInterceptor {
	return unaryClientInterceptor(sb, sb.logger, opts...)
}

// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器
func (sb *slidingBreaker) StreamClientInterceptor(opts ...InterceptorOption) grpc.StreamClientInterceptor {
	return streamClientInterceptor(sb, sb.logger, opts...)
}

// getOrCreateBreaker 获取或创建指定键的熔断器
func (sb *slidingBreaker) getOrCreateBreaker(key string) *gobreaker.CircuitBreaker[any] {
	val, ok := sb.breakers.Load(key)
	if ok {
		return val.(*gobreaker.CircuitBreaker[any])
	}

	settings := gobreaker.Settings{
		Name:        key,
		MaxRequests: sb.cfg.MaxRequests,
		Interval:    sb.cfg.Interval,
		Timeout:     sb.cfg.Timeout,
		ReadyToTrip: sb.readyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			sb.emitStateChange(name, fromGobreakerState(from), fromGobreakerState(to))
		},
	}
	cb := gobreaker.NewCircuitBreaker[any](settings)

	// 可能有并发创建，使用 LoadOrStore
	actual, _ := sb.breakers.LoadOrStore(key, cb)
	return actual.(*gobreaker.CircuitBreaker[any])
}

// readyToTrip 判断是否应该触发熔断
func (sb *slidingBreaker) readyToTrip(counts gobreaker.Counts) bool {
	// 请求数少于最小请求数，不触发熔断
	if counts.Requests < sb.cfg.MinimumRequests {
		return false
	}
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return failureRatio >= sb.cfg.FailureRatio
}

// emitStateChange 上报状态转换。gobreaker 在自身锁外调用该回调。
func (sb *slidingBreaker) emitStateChange(key string, from, to State) {
	reason := slidingReason(from, to)
	sb.logger.Info("circuit breaker state changed",
		clog.String("key", key),
		clog.String("from", from.String()),
		clog.String("to", to.String()),
		clog.String("reason", reason))
	sb.metrics.recordStateChange(context.Background(), key, from, to)

	if sb.onStateChange == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			sb.logger.Error("state change callback panicked",
				clog.String("key", key),
				clog.Any("panic", p))
		}
	}()
	sb.onStateChange(key, from, to, reason)
}

func slidingReason(from, to State) string {
	switch {
	case to == StateOpen && from == StateHalfOpen:
		return reasonProbeFailed
	case to == StateOpen:
		return "failure ratio exceeded"
	case to == StateHalfOpen:
		return reasonResetElapsed
	default:
		return reasonSuccessThreshold
	}
}

// fromGobreakerState 将 gobreaker.State 转换为 breaker.State
func fromGobreakerState(state gobreaker.State) State {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}
