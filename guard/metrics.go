package guard

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/metrics"
)

// 指标名称
const (
	// MetricRequestsTotal 防线请求总数（按终态归类）
	MetricRequestsTotal = "guard_requests_total"
	// MetricPacerWaitSeconds 限流等待时长分布
	MetricPacerWaitSeconds = "guard_pacer_wait_seconds"
)

// 指标标签
const (
	LabelKey     = "key"
	LabelOutcome = "outcome"
)

// OutcomeSuccess 终态为成功时的 outcome 标签值，
// 失败时为 failure.Kind 的字符串表示
const OutcomeSuccess = "success"

// guardMetrics 预创建的指标集合，meter 关闭时各项为 nil
type guardMetrics struct {
	requests  metrics.Counter
	pacerWait metrics.Histogram
}

func newGuardMetrics(meter metrics.Meter) *guardMetrics {
	m := &guardMetrics{}
	m.requests, _ = meter.Counter(MetricRequestsTotal,
		"Total requests through the guard by terminal outcome")
	m.pacerWait, _ = meter.Histogram(MetricPacerWaitSeconds,
		"Time spent waiting for pacer tokens",
		metrics.WithUnit("s"),
		metrics.WithBuckets([]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}))
	return m
}

func (m *guardMetrics) recordRequest(ctx context.Context, key, outcome string) {
	if m.requests == nil {
		return
	}
	m.requests.Inc(ctx, metrics.L(LabelKey, key), metrics.L(LabelOutcome, outcome))
}

func (m *guardMetrics) recordPacerWait(ctx context.Context, key string, d time.Duration) {
	if m.pacerWait == nil {
		return
	}
	m.pacerWait.Record(ctx, d.Seconds(), metrics.L(LabelKey, key))
}
