package retry

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/metrics"
)

// 指标名称常量
const (
	// MetricAttemptsTotal 执行的尝试总数，按 outcome/kind 维度统计
	MetricAttemptsTotal = "retry_attempts_total"
	// MetricRetriesTotal 实际发生的重试次数（不含首次调用）
	MetricRetriesTotal = "retry_retries_total"
	// MetricExhaustedTotal 尝试次数耗尽的序列总数
	MetricExhaustedTotal = "retry_exhausted_total"
	// MetricSleepSeconds 退避等待时长分布（秒）
	MetricSleepSeconds = "retry_sleep_seconds"
)

// 指标标签常量
const (
	// LabelOutcome 单次尝试结果: success | failure
	LabelOutcome = "outcome"
	// LabelKind 故障分类，取 failure.Kind 的字符串值
	LabelKind = "kind"
)

// LabelOutcome 的取值
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// retryMetrics 预创建的指标实例。meter 不可用时各字段为 nil，记录方法做判空。
type retryMetrics struct {
	attempts  metrics.Counter
	retries   metrics.Counter
	exhausted metrics.Counter
	sleep     metrics.Histogram
}

func newRetryMetrics(meter metrics.Meter) *retryMetrics {
	m := &retryMetrics{}
	m.attempts, _ = meter.Counter(MetricAttemptsTotal, "重试引擎执行的尝试总数")
	m.retries, _ = meter.Counter(MetricRetriesTotal, "实际发生的重试次数")
	m.exhausted, _ = meter.Counter(MetricExhaustedTotal, "尝试次数耗尽的重试序列数")
	m.sleep, _ = meter.Histogram(MetricSleepSeconds, "退避等待时长分布",
		metrics.WithUnit("s"),
		metrics.WithBuckets([]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}))
	return m
}

func (m *retryMetrics) recordAttempt(ctx context.Context, outcome, kind string) {
	if m.attempts == nil {
		return
	}
	labels := []metrics.Label{metrics.L(LabelOutcome, outcome)}
	if kind != "" {
		labels = append(labels, metrics.L(LabelKind, kind))
	}
	m.attempts.Inc(ctx, labels...)
}

func (m *retryMetrics) recordRetry(ctx context.Context, kind string) {
	if m.retries == nil {
		return
	}
	m.retries.Inc(ctx, metrics.L(LabelKind, kind))
}

func (m *retryMetrics) recordExhausted(ctx context.Context, kind string) {
	if m.exhausted == nil {
		return
	}
	m.exhausted.Inc(ctx, metrics.L(LabelKind, kind))
}

func (m *retryMetrics) recordSleep(ctx context.Context, d time.Duration) {
	if m.sleep == nil {
		return
	}
	m.sleep.Record(ctx, d.Seconds())
}
