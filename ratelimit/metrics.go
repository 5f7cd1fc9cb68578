package ratelimit

import (
	"context"

	"github.com/ceyewan/aegis/metrics"
)

// Metrics 指标常量定义
const (
	// MetricAllowed 允许通过的请求数 (Counter)
	MetricAllowed = "ratelimit_allowed_total"

	// MetricDenied 被拒绝的请求数 (Counter)
	MetricDenied = "ratelimit_denied_total"

	// LabelKey 限流键标签
	LabelKey = "key"
)

type limiterMetrics struct {
	allowed metrics.Counter
	denied  metrics.Counter
}

func newLimiterMetrics(meter metrics.Meter) *limiterMetrics {
	m := &limiterMetrics{}
	m.allowed, _ = meter.Counter(MetricAllowed, "Number of allowed requests")
	m.denied, _ = meter.Counter(MetricDenied, "Number of denied requests")
	return m
}

func (m *limiterMetrics) recordAllowed(ctx context.Context, key string) {
	if m == nil || m.allowed == nil {
		return
	}
	m.allowed.Inc(ctx, metrics.L(LabelKey, key))
}

func (m *limiterMetrics) recordDenied(ctx context.Context, key string) {
	if m == nil || m.denied == nil {
		return
	}
	m.denied.Inc(ctx, metrics.L(LabelKey, key))
}
