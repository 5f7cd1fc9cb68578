package breaker

import (
	"context"

	"github.com/ceyewan/aegis/clog"
	"google.golang.org/grpc"
)

// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
// 为每个 gRPC 调用提供熔断保护。错误分类走 failure.Classify 的
// gRPC 规则：只有 Unavailable 等瞬时故障计入熔断统计，
// InvalidArgument、PermissionDenied 等永久错误不计数。
//
// 使用示例:
//
//	brk, _ := breaker.New(cfg, breaker.WithLogger(logger))
//	conn, _ := grpc.NewClient(
//		"localhost:9001",
//		grpc.WithUnaryInterceptor(brk.UnaryClientInterceptor(breaker.WithMethodLevelKey())),
//	)
func (cb *circuitBreaker) UnaryClientInterceptor(opts ...InterceptorOption) grpc.UnaryClientInterceptor {
	return unaryClientInterceptor(cb, cb.logger, opts...)
}

// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器
// 门控只统计建流结果；流建立后的收发错误不再计入熔断统计
func (cb *circuitBreaker) StreamClientInterceptor(opts ...InterceptorOption) grpc.StreamClientInterceptor {
	return streamClientInterceptor(cb, cb.logger, opts...)
}

// unaryClientInterceptor 两种门控实现共用的一元拦截器
func unaryClientInterceptor(b Breaker, logger clog.Logger, opts ...InterceptorOption) grpc.UnaryClientInterceptor {
	cfg := defaultInterceptorConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		key := cfg.keyFunc(ctx, method, cc)
		logger.Debug("unary call with circuit breaker",
			clog.String("key", key),
			clog.String("method", method))
		return b.Execute(ctx, key, func(ctx context.Context) error {
			return invoker(ctx, method, req, reply, cc, callOpts...)
		})
	}
}

// streamClientInterceptor 两种门控实现共用的流式拦截器
func streamClientInterceptor(b Breaker, logger clog.Logger, opts ...InterceptorOption) grpc.StreamClientInterceptor {
	cfg := defaultInterceptorConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		key := cfg.keyFunc(ctx, method, cc)
		logger.Debug("stream call with circuit breaker",
			clog.String("key", key),
			clog.String("method", method))

		var stream grpc.ClientStream
		err := b.Execute(ctx, key, func(ctx context.Context) error {
			s, err := streamer(ctx, desc, cc, method, callOpts...)
			if err != nil {
				return err
			}
			stream = s
			return nil
		})
		if err != nil {
			return nil, err
		}
		if stream == nil {
			// 降级函数吞掉了熔断错误，但调用方需要一个可用的流，
			// 返回 nil 流会让首次收发直接 panic，这里兜底返回熔断错误
			return nil, ErrOpenState
		}
		return stream, nil
	}
}
