package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/failure"
	"github.com/ceyewan/aegis/metrics"
)

// Metrics 指标常量定义
const (
	// MetricRequestsTotal 请求总数，含被拒绝的请求 (Counter)
	MetricRequestsTotal = "breaker_requests_total"

	// MetricSuccessTotal 成功请求数 (Counter)
	MetricSuccessTotal = "breaker_success_total"

	// MetricFailuresTotal 失败请求数，按故障分类统计 (Counter)
	MetricFailuresTotal = "breaker_failures_total"

	// MetricRejectsTotal 被熔断拒绝的请求数 (Counter)
	MetricRejectsTotal = "breaker_rejects_total"

	// MetricStateChanges 状态变更次数 (Counter)
	MetricStateChanges = "breaker_state_changes_total"

	// MetricState 当前状态编码: 0=closed 1=half_open 2=open (Gauge)
	MetricState = "breaker_state"

	// MetricRequestDuration 请求耗时 (Histogram)
	MetricRequestDuration = "breaker_request_duration_seconds"

	// LabelKey 熔断键标签
	LabelKey = "key"

	// LabelKind 故障分类标签
	LabelKind = "kind"

	// LabelFromState 源状态标签
	LabelFromState = "from_state"

	// LabelToState 目标状态标签
	LabelToState = "to_state"

	// LabelResult 结果标签 (success/failure)
	LabelResult = "result"
)

// breakerMetrics 预创建的指标实例。meter 不可用时各字段为 nil，记录方法做判空。
type breakerMetrics struct {
	requests     metrics.Counter
	success      metrics.Counter
	failures     metrics.Counter
	rejects      metrics.Counter
	stateChanges metrics.Counter
	state        metrics.Gauge
	duration     metrics.Histogram
}

func newBreakerMetrics(meter metrics.Meter) *breakerMetrics {
	m := &breakerMetrics{}
	m.requests, _ = meter.Counter(MetricRequestsTotal, "熔断器处理的请求总数")
	m.success, _ = meter.Counter(MetricSuccessTotal, "熔断器放行后成功的请求数")
	m.failures, _ = meter.Counter(MetricFailuresTotal, "熔断器放行后失败的请求数")
	m.rejects, _ = meter.Counter(MetricRejectsTotal, "被熔断拒绝的请求数")
	m.stateChanges, _ = meter.Counter(MetricStateChanges, "熔断器状态变更次数")
	m.state, _ = meter.Gauge(MetricState, "熔断器当前状态编码")
	m.duration, _ = meter.Histogram(MetricRequestDuration, "受保护调用的耗时分布",
		metrics.WithUnit("s"),
		metrics.WithBuckets([]float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}))
	return m
}

func (m *breakerMetrics) recordRequest(ctx context.Context, key string) {
	if m.requests == nil {
		return
	}
	m.requests.Inc(ctx, metrics.L(LabelKey, key))
}

func (m *breakerMetrics) recordSuccess(ctx context.Context, key string) {
	if m.success == nil {
		return
	}
	m.success.Inc(ctx, metrics.L(LabelKey, key))
}

func (m *breakerMetrics) recordFailure(ctx context.Context, key string, kind failure.Kind) {
	if m.failures == nil {
		return
	}
	m.failures.Inc(ctx, metrics.L(LabelKey, key), metrics.L(LabelKind, kind.String()))
}

func (m *breakerMetrics) recordReject(ctx context.Context, key string) {
	if m.rejects == nil {
		return
	}
	m.rejects.Inc(ctx, metrics.L(LabelKey, key))
}

func (m *breakerMetrics) recordStateChange(ctx context.Context, key string, from, to State) {
	if m.stateChanges != nil {
		m.stateChanges.Inc(ctx,
			metrics.L(LabelKey, key),
			metrics.L(LabelFromState, from.String()),
			metrics.L(LabelToState, to.String()))
	}
	if m.state != nil {
		m.state.Set(ctx, float64(to), metrics.L(LabelKey, key))
	}
}

func (m *breakerMetrics) recordDuration(ctx context.Context, key string, d time.Duration, ok bool) {
	if m.duration == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.duration.Record(ctx, d.Seconds(), metrics.L(LabelKey, key), metrics.L(LabelResult, result))
}
