package guard

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/failure"
	"github.com/ceyewan/aegis/retry"
)

// guardImpl 防线实现（非导出）
type guardImpl struct {
	logger     clog.Logger
	metrics    *guardMetrics
	clock      func() time.Time
	classifier failure.Classifier
	pacer      Pacer
	retryer    retry.Retryer
	breaker    breaker.Breaker
}

func newGuard(cfg *Config, opts ...Option) (Guard, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	retryer := o.retryer
	if retryer == nil {
		ropts := []retry.Option{
			retry.WithLogger(o.logger),
			retry.WithMeter(o.meter),
		}
		if o.classifier != nil {
			ropts = append(ropts, retry.WithClassifier(o.classifier))
		}
		if o.clock != nil {
			ropts = append(ropts, retry.WithClock(o.clock))
		}
		if o.sleeper != nil {
			ropts = append(ropts, retry.WithSleeper(o.sleeper))
		}
		if o.rnd != nil {
			ropts = append(ropts, retry.WithRand(o.rnd))
		}
		if o.onAttempt != nil {
			ropts = append(ropts, retry.WithOnAttempt(o.onAttempt))
		}
		r, err := retry.New(&cfg.Retry, ropts...)
		if err != nil {
			return nil, err
		}
		retryer = r
	}

	brk := o.breaker
	if brk == nil {
		bopts := []breaker.Option{
			breaker.WithLogger(o.logger),
			breaker.WithMeter(o.meter),
		}
		if o.classifier != nil {
			bopts = append(bopts, breaker.WithClassifier(o.classifier))
		}
		if o.clock != nil {
			bopts = append(bopts, breaker.WithClock(o.clock))
		}
		if o.onStateChange != nil {
			bopts = append(bopts, breaker.WithOnStateChange(o.onStateChange))
		}
		if o.fallback != nil {
			bopts = append(bopts, breaker.WithFallback(o.fallback))
		}
		b, err := breaker.New(&cfg.Breaker, bopts...)
		if err != nil {
			return nil, err
		}
		brk = b
	}

	return &guardImpl{
		logger:     o.logger,
		metrics:    newGuardMetrics(o.meter),
		clock:      o.clock,
		classifier: o.classifier,
		pacer:      o.pacer,
		retryer:    retryer,
		breaker:    brk,
	}, nil
}

// Execute 执行完整防线：限流等待 → 熔断准入 → 重试序列。
// 熔断器以重试序列的最终结果记账一次。
func (g *guardImpl) Execute(ctx context.Context, key string, op retry.Operation) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if op == nil {
		return ErrNilOperation
	}

	if g.pacer != nil {
		start := g.clock()
		if err := g.pacer.Wait(ctx, key); err != nil {
			g.logger.Debug("pacer wait aborted",
				clog.String("key", key),
				clog.Error(err))
			return err
		}
		g.metrics.recordPacerWait(ctx, key, g.clock().Sub(start))
	}

	err := g.breaker.Execute(ctx, key, func(ctx context.Context) error {
		return g.retryer.Do(ctx, op)
	})
	g.metrics.recordRequest(ctx, key, g.outcome(err))
	return err
}

// State 透传内层熔断器的状态
func (g *guardImpl) State(key string) (breaker.State, error) {
	return g.breaker.State(key)
}

// Stats 透传内层熔断器的状态快照
func (g *guardImpl) Stats(key string) (breaker.Stats, error) {
	return g.breaker.Stats(key)
}

func (g *guardImpl) outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	return failure.Classify(err, g.classifier).Kind().String()
}
