package retry

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/failure"
	"github.com/ceyewan/aegis/xerrors"
)

// retryer 默认实现。除随机源外所有字段只读，随机源由 randMu 保护，
// 因此单个实例可在多个 goroutine 中并发使用。
type retryer struct {
	cfg        *Config
	logger     clog.Logger
	metrics    *retryMetrics
	clock      func() time.Time
	sleeper    func(ctx context.Context, d time.Duration) error
	onAttempt  func(AttemptInfo)
	classifier failure.Classifier

	randMu sync.Mutex
	rnd    *rand.Rand
}

func newRetryer(cfg *Config, opts ...Option) *retryer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	rnd := o.rnd
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &retryer{
		cfg:        cfg,
		logger:     o.logger,
		metrics:    newRetryMetrics(o.meter),
		clock:      o.clock,
		sleeper:    o.sleeper,
		onAttempt:  o.onAttempt,
		classifier: o.classifier,
		rnd:        rnd,
	}
}

func (r *retryer) Do(ctx context.Context, op Operation) error {
	if op == nil {
		return ErrNilOperation
	}
	if r.cfg.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.OverallTimeout)
		defer cancel()
	}

	start := r.clock()
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			r.metrics.recordAttempt(ctx, OutcomeSuccess, "")
			return nil
		}

		f := failure.Classify(err, r.classifier)
		kind := f.Kind().String()
		r.metrics.recordAttempt(ctx, OutcomeFailure, kind)

		if !f.Retryable() {
			r.notifyAttempt(AttemptInfo{Attempt: attempt, MaxAttempts: r.cfg.MaxAttempts, Err: err})
			r.logger.Debug("permanent failure, not retrying",
				clog.Int("attempt", attempt),
				clog.String("kind", kind),
				clog.Error(err))
			return err
		}
		if attempt >= r.cfg.MaxAttempts {
			r.notifyAttempt(AttemptInfo{Attempt: attempt, MaxAttempts: r.cfg.MaxAttempts, Err: err})
			r.metrics.recordExhausted(ctx, kind)
			r.logger.Warn("retry attempts exhausted",
				clog.Int("attempts", attempt),
				clog.String("kind", kind),
				clog.Error(err))
			return err
		}

		delay := r.nextDelay(attempt, f)

		// 剩余时间预算不足以覆盖这次等待时提前结束，避免无意义地睡到超时
		if r.cfg.OverallTimeout > 0 {
			elapsed := r.clock().Sub(start)
			if elapsed+delay >= r.cfg.OverallTimeout {
				r.notifyAttempt(AttemptInfo{Attempt: attempt, MaxAttempts: r.cfg.MaxAttempts, Err: err})
				r.logger.Warn("overall timeout budget exceeded",
					clog.Int("attempt", attempt),
					clog.Duration("elapsed", elapsed),
					clog.Error(err))
				return failure.Timeout(elapsed).WithCause(err)
			}
		}

		r.notifyAttempt(AttemptInfo{Attempt: attempt, MaxAttempts: r.cfg.MaxAttempts, Delay: delay, Err: err})
		r.logger.Debug("retrying after failure",
			clog.Int("attempt", attempt),
			clog.Duration("delay", delay),
			clog.String("kind", kind),
			clog.Error(err))
		r.metrics.recordRetry(ctx, kind)
		r.metrics.recordSleep(ctx, delay)

		if serr := r.sleeper(ctx, delay); serr != nil {
			if xerrors.Is(serr, context.DeadlineExceeded) {
				elapsed := r.clock().Sub(start)
				return failure.Timeout(elapsed).WithCause(err)
			}
			return serr
		}
	}
}

// nextDelay 计算第 attempt 次失败后的等待时长。
// 服务端给出建议等待时长时直接采用（不叠加抖动）；否则按
// InitialDelay × Multiplier^(attempt-1) 计算并受 MaxDelay 封顶，
// 启用抖动时在封顶后的基础值上叠加 [0, 0.25×base) 的均匀随机量。
func (r *retryer) nextDelay(attempt int, f *failure.Failure) time.Duration {
	if wait, ok := f.SuggestedWait(); ok {
		return wait
	}
	base := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	if base > float64(r.cfg.MaxDelay) {
		base = float64(r.cfg.MaxDelay)
	}
	delay := time.Duration(base)
	if r.cfg.jitterEnabled() {
		delay += time.Duration(r.float64() * 0.25 * base)
	}
	return delay
}

func (r *retryer) float64() float64 {
	r.randMu.Lock()
	defer r.randMu.Unlock()
	return r.rnd.Float64()
}

func (r *retryer) notifyAttempt(info AttemptInfo) {
	if r.onAttempt == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("attempt callback panicked", clog.Any("panic", p))
		}
	}()
	r.onAttempt(info)
}
