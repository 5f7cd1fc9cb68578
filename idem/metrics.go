package idem

import (
	"context"

	"github.com/ceyewan/aegis/metrics"
)

// Metrics 指标常量定义
//
// 不以幂等键作为标签：幂等键通常逐请求唯一（订单号、消息 ID），
// 作为标签会导致基数爆炸。
const (
	// MetricRequests 幂等请求总数，按 outcome 区分 (Counter)
	MetricRequests = "idem_requests_total"

	// LabelOutcome 请求结果标签
	LabelOutcome = "outcome"

	// OutcomeHit 缓存命中，直接返回已缓存结果
	OutcomeHit = "hit"

	// OutcomeExecuted 首次执行并缓存结果
	OutcomeExecuted = "executed"

	// OutcomeConflict 并发冲突，返回 ErrConcurrentRequest
	OutcomeConflict = "conflict"
)

type idemMetrics struct {
	requests metrics.Counter
}

func newIdemMetrics(meter metrics.Meter) *idemMetrics {
	m := &idemMetrics{}
	m.requests, _ = meter.Counter(MetricRequests, "Number of idempotent requests by outcome")
	return m
}

func (m *idemMetrics) record(ctx context.Context, outcome string) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.Inc(ctx, metrics.L(LabelOutcome, outcome))
}
