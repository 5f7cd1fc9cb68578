package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/failure"
)

// 状态转换原因，透传给 WithOnStateChange 回调
const (
	reasonFailureThreshold = "failure threshold reached"
	reasonProbeFailed      = "probe failed"
	reasonSuccessThreshold = "success threshold reached"
	reasonResetElapsed     = "reset timeout elapsed"
)

// circuitBreaker 连续失败门控的熔断器实现（非导出）
type circuitBreaker struct {
	cfg           *Config
	logger        clog.Logger
	metrics       *breakerMetrics
	clock         func() time.Time
	classifier    failure.Classifier
	onStateChange func(key string, from, to State, reason string)
	fallback      FallbackFunc

	// 按键隔离的门控管理
	gates sync.Map // map[string]*gate
}

// gate 单个 key 的状态机。所有字段由 mu 保护。
type gate struct {
	mu         sync.Mutex
	state      State
	generation uint64 // 每次状态转换递增，过期的调用结果按代号丢弃
	failures   int    // Closed 状态的连续被计数失败数
	successes  int    // HalfOpen 状态的连续成功数
	openedAt   time.Time
}

// stateChange 一次已发生的状态转换，锁外上报
type stateChange struct {
	key    string
	from   State
	to     State
	reason string
}

func newCircuitBreaker(cfg *Config, opts ...Option) *circuitBreaker {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &circuitBreaker{
		cfg:           cfg,
		logger:        o.logger,
		metrics:       newBreakerMetrics(o.meter),
		clock:         o.clock,
		classifier:    o.classifier,
		onStateChange: o.onStateChange,
		fallback:      o.fallback,
	}
}

// Execute 执行受熔断保护的操作
func (cb *circuitBreaker) Execute(ctx context.Context, key string, op func(ctx context.Context) error) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if op == nil {
		return ErrNilOperation
	}

	g := cb.getOrCreateGate(key)
	cb.metrics.recordRequest(ctx, key)

	gen, admitted := cb.admit(ctx, g, key)
	if !admitted {
		cb.metrics.recordReject(ctx, key)
		cb.logger.Debug("request rejected, circuit open", clog.String("key", key))
		if cb.fallback != nil {
			return cb.fallback(ctx, key, ErrOpenState)
		}
		return ErrOpenState
	}

	start := cb.clock()
	err := op(ctx)
	cb.metrics.recordDuration(ctx, key, cb.clock().Sub(start), err == nil)
	cb.afterCall(ctx, g, key, gen, err)
	return err
}

// State 获取指定键的熔断器状态
func (cb *circuitBreaker) State(key string) (State, error) {
	st, err := cb.Stats(key)
	return st.State, err
}

// Stats 获取指定键的状态快照。只读：Open 已到期时报告 HalfOpen 视图，
// 真正的晋升留给下一次 Execute。
func (cb *circuitBreaker) Stats(key string) (Stats, error) {
	if key == "" {
		return Stats{}, ErrKeyEmpty
	}
	val, ok := cb.gates.Load(key)
	if !ok {
		return Stats{State: StateClosed}, nil
	}
	g := val.(*gate)

	g.mu.Lock()
	defer g.mu.Unlock()
	st := Stats{
		State:                g.state,
		ConsecutiveFailures:  g.failures,
		ConsecutiveSuccesses: g.successes,
	}
	if g.state == StateOpen {
		remaining := cb.cfg.ResetTimeout - cb.clock().Sub(g.openedAt)
		if remaining > 0 {
			st.TimeUntilReset = remaining
		} else {
			st.State = StateHalfOpen
		}
	}
	return st, nil
}

// admit 判定调用是否放行。放行时返回当前代号，供结果归账时识别过期调用。
func (cb *circuitBreaker) admit(ctx context.Context, g *gate, key string) (uint64, bool) {
	g.mu.Lock()
	if g.state == StateOpen {
		if cb.clock().Sub(g.openedAt) < cb.cfg.ResetTimeout {
			g.mu.Unlock()
			return 0, false
		}
		change := cb.transitionLocked(g, key, StateHalfOpen, reasonResetElapsed)
		gen := g.generation
		g.mu.Unlock()
		cb.emit(ctx, change)
		return gen, true
	}
	gen := g.generation
	g.mu.Unlock()
	return gen, true
}

// afterCall 将调用结果归账到状态机。
// 计数规则：nil 为成功；分类为可重试的故障计数；永久性失败
// （含嵌套的 KindCircuitOpen）既不累计也不清零，结果原样透传。
func (cb *circuitBreaker) afterCall(ctx context.Context, g *gate, key string, gen uint64, err error) {
	if err != nil {
		f := failure.Classify(err, cb.classifier)
		cb.metrics.recordFailure(ctx, key, f.Kind())
		if f.Kind() == failure.KindCircuitOpen || !f.Retryable() {
			return
		}
	} else {
		cb.metrics.recordSuccess(ctx, key)
	}

	var change *stateChange
	g.mu.Lock()
	if g.generation != gen {
		// 状态已翻转，过期结果不归账
		g.mu.Unlock()
		return
	}
	if err == nil {
		switch g.state {
		case StateClosed:
			g.failures = 0
		case StateHalfOpen:
			g.successes++
			if g.successes >= cb.cfg.SuccessThreshold {
				change = cb.transitionLocked(g, key, StateClosed, reasonSuccessThreshold)
			}
		}
	} else {
		switch g.state {
		case StateClosed:
			g.failures++
			if g.failures >= cb.cfg.FailureThreshold {
				change = cb.transitionLocked(g, key, StateOpen, reasonFailureThreshold)
			}
		case StateHalfOpen:
			change = cb.transitionLocked(g, key, StateOpen, reasonProbeFailed)
		}
	}
	g.mu.Unlock()
	cb.emit(ctx, change)
}

// transitionLocked 执行状态转换，调用方必须持有 g.mu。
// 返回待上报的转换记录，观察副作用（日志、指标、回调）由 emit 在锁外完成。
func (cb *circuitBreaker) transitionLocked(g *gate, key string, to State, reason string) *stateChange {
	from := g.state
	if from == to {
		return nil
	}
	g.state = to
	g.generation++
	g.failures = 0
	g.successes = 0
	if to == StateOpen {
		g.openedAt = cb.clock()
	}
	return &stateChange{key: key, from: from, to: to, reason: reason}
}

// emit 在锁外上报状态转换。回调 panic 被吞掉，不影响调用流程。
func (cb *circuitBreaker) emit(ctx context.Context, change *stateChange) {
	if change == nil {
		return
	}
	cb.logger.Info("circuit breaker state changed",
		clog.String("key", change.key),
		clog.String("from", change.from.String()),
		clog.String("to", change.to.String()),
		clog.String("reason", change.reason))
	cb.metrics.recordStateChange(ctx, change.key, change.from, change.to)

	if cb.onStateChange == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			cb.logger.Error("state change callback panicked",
				clog.String("key", change.key),
				clog.Any("panic", p))
		}
	}()
	cb.onStateChange(change.key, change.from, change.to, change.reason)
}

// getOrCreateGate 获取或创建指定键的门控
func (cb *circuitBreaker) getOrCreateGate(key string) *gate {
	val, ok := cb.gates.Load(key)
	if ok {
		return val.(*gate)
	}
	// 可能有并发创建，使用 LoadOrStore
	actual, _ := cb.gates.LoadOrStore(key, &gate{state: StateClosed})
	return actual.(*gate)
}
