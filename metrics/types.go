// Package metrics 为 aegis 提供统一的指标收集能力。
// 基于 OpenTelemetry 标准构建，提供简洁的 Counter、Gauge、Histogram 指标接口。
//
// 架构说明：
//   - 完全扁平化设计，无 types/ 子包
//   - 基于 OpenTelemetry 标准，通过 Prometheus Exporter 暴露
//   - 内置 Prometheus HTTP 服务器，支持指标自动暴露
//   - Enabled=false 时返回 noop Meter，调用方无需做判空
//
// 快速开始：
//
//	cfg := &metrics.Config{
//	    Enabled:     true,
//	    ServiceName: "exchange-client",
//	    Version:     "v1.0.0",
//	    Port:        9090,
//	    Path:        "/metrics",
//	}
//
//	meter, err := metrics.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer meter.Shutdown(ctx)
//
//	counter, _ := meter.Counter("retry_attempts_total", "重试执行的总次数")
//	histogram, _ := meter.Histogram("retry_sleep_seconds", "重试等待耗时（秒）")
//
// 使用示例：
//
//	counter.Inc(ctx, metrics.L("key", "exchange"), metrics.L("outcome", "success"))
//	histogram.Record(ctx, 0.123, metrics.L("key", "exchange"))
package metrics

import "context"

// Counter 计数器接口
// 用于记录只能增加的累计值，例如请求数、重试次数、熔断拒绝数等
//
// 使用示例：
//
//	counter, _ := meter.Counter("retry_attempts_total", "重试执行的总次数")
//	counter.Inc(ctx, metrics.L("key", "exchange"))
//	counter.Add(ctx, 5, metrics.L("key", "batch"))
type Counter interface {
	// Inc 将计数器增加 1
	Inc(ctx context.Context, labels ...Label)

	// Add 将计数器增加给定的值。
	// 传入负数时行为未定义，大部分监控系统会忽略或报错。
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 仪表盘接口
// 用于记录可以任意增减的瞬时值，例如熔断器当前状态、活跃探测数、队列长度等
//
// 使用示例：
//
//	gauge, _ := meter.Gauge("breaker_state", "熔断器状态编码")
//	gauge.Set(ctx, 1, metrics.L("key", "exchange"))
//	gauge.Inc(ctx, metrics.L("key", "exchange"))
//	gauge.Dec(ctx, metrics.L("key", "exchange"))
type Gauge interface {
	// Set 将 gauge 设置为给定的值，覆盖之前的值
	Set(ctx context.Context, val float64, labels ...Label)

	// Inc 将 gauge 增加 1
	Inc(ctx context.Context, labels ...Label)

	// Dec 将 gauge 减少 1
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 直方图接口
// 用于记录值的分布情况，例如退避等待时长、请求耗时分布等。
// 直方图会自动计算分位数（如 P95、P99）和总计数值。
//
// 使用示例：
//
//	histogram, _ := meter.Histogram(
//	    "retry_sleep_seconds",
//	    "重试等待耗时",
//	    metrics.WithUnit("s"),
//	    metrics.WithBuckets([]float64{0.05, 0.1, 0.5, 1, 5, 30}),
//	)
//	histogram.Record(ctx, 0.123, metrics.L("key", "exchange"))
type Histogram interface {
	// Record 在直方图中记录一个值，值会被归类到相应的桶中
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标创建工厂接口
// 是所有指标类型的创建入口，负责管理指标的生命周期。
//
// 一个 Meter 实例通常对应一个服务；通过 Meter 创建的指标线程安全，
// 可以在多个 goroutine 中并发使用。
type Meter interface {
	// Counter 创建计数器实例。
	// name 应符合 Prometheus 命名规范（如 retry_attempts_total）。
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)

	// Gauge 创建仪表盘实例。
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)

	// Histogram 创建直方图实例。
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// Shutdown 关闭 Meter，刷新所有指标。通常在应用程序退出时调用。
	Shutdown(ctx context.Context) error
}

// MetricOption 指标配置选项函数类型
type MetricOption func(*MetricOptions)

// MetricOptions 指标选项结构体，在指标创建时使用
type MetricOptions struct {
	// Unit 指标的单位，例如 "s"、"By"。建议使用 UCUM 单位代码。
	Unit string

	// Buckets 直方图的桶边界，仅对 Histogram 生效。
	// 为空时使用 OTel SDK 的默认边界。
	Buckets []float64
}

// WithUnit 设置指标的单位
//
// 使用示例：
//
//	histogram, _ := meter.Histogram(
//	    "breaker_open_duration_seconds",
//	    "熔断器保持打开的时长",
//	    metrics.WithUnit("s"),
//	)
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}

// WithBuckets 设置直方图的桶边界，仅对 Histogram 生效
func WithBuckets(buckets []float64) MetricOption {
	return func(o *MetricOptions) {
		o.Buckets = append([]float64(nil), buckets...)
	}
}
