package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/ceyewan/aegis/xerrors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	MetricGRPCClientRequestTotal    = "grpc_client_requests_total"
	MetricGRPCClientDurationSeconds = "grpc_client_request_duration_seconds"
)

var defaultGRPCDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// GRPCClientMetricsConfig 配置可重用的 gRPC 客户端指标
type GRPCClientMetricsConfig struct {
	Service             string
	RequestTotalName    string
	RequestDurationName string
	DurationBuckets     []float64
	StaticLabels        []Label
}

// DefaultGRPCClientMetricsConfig 返回默认的 gRPC 客户端指标配置
func DefaultGRPCClientMetricsConfig(service string) *GRPCClientMetricsConfig {
	return &GRPCClientMetricsConfig{
		Service:             service,
		RequestTotalName:    MetricGRPCClientRequestTotal,
		RequestDurationName: MetricGRPCClientDurationSeconds,
		DurationBuckets:     defaultGRPCDurationBuckets,
	}
}

// GRPCClientMetrics 封装可重用的 gRPC 客户端 RED 指标集。
// 与 breaker 的客户端拦截器配合使用时，放在拦截器链的最外层，
// 这样被熔断器直接拒绝的调用也会被计入。
type GRPCClientMetrics struct {
	service      string
	requestTotal Counter
	duration     Histogram
	staticLabels []Label
}

// NewGRPCClientMetrics 创建可重用的 gRPC 客户端指标
func NewGRPCClientMetrics(m Meter, cfg *GRPCClientMetricsConfig) (*GRPCClientMetrics, error) {
	if m == nil {
		return nil, xerrors.New("meter is nil")
	}
	if cfg == nil {
		return nil, xerrors.New("config is nil")
	}

	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		service = "unknown"
	}

	requestTotalName := strings.TrimSpace(cfg.RequestTotalName)
	if requestTotalName == "" {
		requestTotalName = MetricGRPCClientRequestTotal
	}
	requestDurationName := strings.TrimSpace(cfg.RequestDurationName)
	if requestDurationName == "" {
		requestDurationName = MetricGRPCClientDurationSeconds
	}

	counter, err := m.Counter(requestTotalName, "Total number of gRPC client requests.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create grpc request counter")
	}

	histogramOpts := []MetricOption{WithUnit("s")}
	if len(cfg.DurationBuckets) > 0 {
		histogramOpts = append(histogramOpts, WithBuckets(cfg.DurationBuckets))
	}
	duration, err := m.Histogram(requestDurationName, "gRPC client request duration in seconds.", histogramOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "create grpc request duration histogram")
	}

	static := make([]Label, len(cfg.StaticLabels))
	copy(static, cfg.StaticLabels)

	return &GRPCClientMetrics{
		service:      service,
		requestTotal: counter,
		duration:     duration,
		staticLabels: static,
	}, nil
}

// Observe 记录一次 gRPC 调用的 RED 指标
func (m *GRPCClientMetrics) Observe(ctx context.Context, fullMethod string, code codes.Code, duration time.Duration) {
	if m == nil {
		return
	}

	method := strings.TrimSpace(fullMethod)
	if method == "" {
		method = "unknown"
	}

	labels := make([]Label, 0, len(m.staticLabels)+6)
	labels = append(labels, m.staticLabels...)
	labels = append(labels,
		L(LabelService, m.service),
		L(LabelOperation, OperationGRPCClient),
		L(LabelMethod, method),
		L(LabelRoute, method),
		L(LabelGRPCCode, GRPCStatusClass(code)),
		L(LabelOutcome, GRPCOutcome(code)),
	)

	m.requestTotal.Inc(ctx, labels...)
	m.duration.Record(ctx, duration.Seconds(), labels...)
}

// UnaryClientInterceptor 返回一个可重用的 grpc.UnaryClientInterceptor
func (m *GRPCClientMetrics) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		m.Observe(ctx, method, status.Code(err), time.Since(start))
		return err
	}
}

// StreamClientInterceptor 返回一个可重用的 grpc.StreamClientInterceptor。
// 指标在流建立时记录一次，不跟踪流内消息。
func (m *GRPCClientMetrics) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		start := time.Now()
		stream, err := streamer(ctx, desc, cc, method, opts...)
		m.Observe(ctx, method, status.Code(err), time.Since(start))
		return stream, err
	}
}
