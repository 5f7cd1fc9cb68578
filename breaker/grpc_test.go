package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ceyewan/aegis/clog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ============================================================
// 辅助类型
// ============================================================

// errorInvoker 返回预设错误的 invoker
type errorInvoker struct {
	err error
}

func (e *errorInvoker) invoke(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
	return e.err
}

// successInvoker 成功的 invoker
type successInvoker struct{}

func (s *successInvoker) invoke(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
	return nil
}

// countingInvoker 记录调用次数
type countingInvoker struct {
	count int
	err   error
}

func (c *countingInvoker) invoke(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
	c.count++
	return c.err
}

// mockClientStream 模拟 grpc.ClientStream
type mockClientStream struct {
	grpc.ClientStream
	recvFunc func(m interface{}) error
	sendFunc func(m interface{}) error
}

func (m *mockClientStream) RecvMsg(msg interface{}) error {
	if m.recvFunc != nil {
		return m.recvFunc(msg)
	}
	return nil
}

func (m *mockClientStream) SendMsg(msg interface{}) error {
	if m.sendFunc != nil {
		return m.sendFunc(msg)
	}
	return nil
}

func (m *mockClientStream) Context() context.Context       { return context.Background() }
func (m *mockClientStream) Header() (metadata.MD, error)   { return nil, nil }
func (m *mockClientStream) Trailer() metadata.MD           { return nil }
func (m *mockClientStream) CloseSend() error               { return nil }

func constantKey(key string) InterceptorOption {
	return WithKeyFunc(func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
		return key
	})
}

// ============================================================
// Unary Client Interceptor 测试
// ============================================================

func TestUnaryClientInterceptor_Basic(t *testing.T) {
	logger, _ := clog.New(&clog.Config{Level: "error"})

	t.Run("拦截器应该成功调用 invoker", func(t *testing.T) {
		brk, err := New(&Config{}, WithLogger(logger))
		if err != nil {
			t.Fatalf("New should not return error, got: %v", err)
		}

		// 使用自定义 KeyFunc 避免依赖 cc.Target()
		interceptor := brk.UnaryClientInterceptor(constantKey("test-basic"))
		invoker := &successInvoker{}

		err = interceptor(context.Background(), "/test/Method", "req", "reply", nil, invoker.invoke)
		if err != nil {
			t.Errorf("expected no error, got: %v", err)
		}
	})

	t.Run("invoker 错误应该被正确传递", func(t *testing.T) {
		brk, err := New(&Config{}, WithLogger(logger))
		if err != nil {
			t.Fatalf("New should not return error, got: %v", err)
		}

		interceptor := brk.UnaryClientInterceptor(constantKey("test-error"))
		testErr := status.Error(codes.Unavailable, "service unavailable")
		invoker := &errorInvoker{err: testErr}

		err = interceptor(context.Background(), "/test/Method", "req", "reply", nil, invoker.invoke)
		if err == nil {
			t.Error("expected error, got nil")
		}
		if status.Code(err) != codes.Unavailable {
			t.Errorf("expected codes.Unavailable, got: %v", status.Code(err))
		}
	})
}

func TestUnaryClientInterceptor_CircuitOpen(t *testing.T) {
	logger, _ := clog.New(&clog.Config{Level: "error"})

	brk, err := New(&Config{FailureThreshold: 3, ResetTimeout: time.Hour},
		WithLogger(logger))
	if err != nil {
		t.Fatalf("New should not return error, got: %v", err)
	}

	serviceKey := "test-circuit-open"
	interceptor := brk.UnaryClientInterceptor(constantKey(serviceKey))
	// Unavailable 是瞬时故障，计入熔断统计
	invoker := &errorInvoker{err: status.Error(codes.Unavailable, "connection failed")}

	t.Run("触发熔断器打开", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_ = interceptor(context.Background(), "/test/Service", "req", "reply", nil, invoker.invoke)
		}

		state, err := brk.State(serviceKey)
		if err != nil {
			t.Fatalf("State should not return error, got: %v", err)
		}
		if state != StateOpen {
			t.Fatalf("expected StateOpen after 3 unavailable errors, got: %v", state)
		}
	})

	t.Run("熔断中快速失败且不触达 invoker", func(t *testing.T) {
		counting := &countingInvoker{}
		err := interceptor(context.Background(), "/test/Service", "req", "reply", nil, counting.invoke)
		if !errors.Is(err, ErrOpenState) {
			t.Fatalf("expected ErrOpenState, got: %v", err)
		}
		if counting.count != 0 {
			t.Errorf("invoker should not run while circuit open, ran %d times", counting.count)
		}
	})
}

func TestUnaryClientInterceptor_PermanentErrorsDoNotTrip(t *testing.T) {
	logger, _ := clog.New(&clog.Config{Level: "error"})

	brk, _ := New(&Config{FailureThreshold: 2}, WithLogger(logger))
	interceptor := brk.UnaryClientInterceptor(constantKey("test-permanent"))

	// InvalidArgument 是永久错误，不计入熔断统计
	invoker := &errorInvoker{err: status.Error(codes.InvalidArgument, "bad request")}

	t.Run("永久错误不触发熔断", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			err := interceptor(context.Background(), "/test/Method", "req", "reply", nil, invoker.invoke)
			if status.Code(err) != codes.InvalidArgument {
				t.Fatalf("error should pass through, got: %v", err)
			}
		}

		state, _ := brk.State("test-permanent")
		if state != StateClosed {
			t.Errorf("permanent errors should never trip, got: %v", state)
		}
	})
}

func TestUnaryClientInterceptor_WithCustomKeyFunc(t *testing.T) {
	logger, _ := clog.New(&clog.Config{Level: "error"})

	brk, err := New(&Config{}, WithLogger(logger))
	if err != nil {
		t.Fatalf("New should not return error, got: %v", err)
	}

	t.Run("方法级别熔断 key", func(t *testing.T) {
		interceptor := brk.UnaryClientInterceptor(WithMethodLevelKey())

		invoker := &successInvoker{}
		err = interceptor(context.Background(), "/test/Method1", "req", "reply", nil, invoker.invoke)
		if err != nil {
			t.Errorf("expected no error, got: %v", err)
		}

		state, err := brk.State("/test/Method1")
		if err != nil {
			t.Errorf("State should not return error, got: %v", err)
		}
		if state != StateClosed {
			t.Errorf("expected StateClosed, got: %v", state)
		}
	})

	t.Run("自定义前缀 key", func(t *testing.T) {
		customPrefix := "custom-service:"
		interceptor := brk.UnaryClientInterceptor(WithKeyFunc(func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
			return customPrefix + fullMethod
		}))

		invoker := &successInvoker{}
		err = interceptor(context.Background(), "/test/Method2", "req", "reply", nil, invoker.invoke)
		if err != nil {
			t.Errorf("expected no error, got: %v", err)
		}

		stats, err := brk.Stats("custom-service:/test/Method2")
		if err != nil {
			t.Errorf("Stats should not return error, got: %v", err)
		}
		if stats.State != StateClosed {
			t.Errorf("expected StateClosed, got: %v", stats.State)
		}
	})
}

func TestUnaryClientInterceptor_WithFallback(t *testing.T) {
	logger, _ := clog.New(&clog.Config{Level: "error"})

	fallbackCalled := false
	fallback := func(ctx context.Context, key string, err error) error {
		fallbackCalled = true
		// 返回降级响应
		return status.Error(codes.ResourceExhausted, "circuit breaker open - fallback response")
	}

	brk, err := New(&Config{FailureThreshold: 2, ResetTimeout: time.Hour},
		WithLogger(logger), WithFallback(fallback))
	if err != nil {
		t.Fatalf("New should not return error, got: %v", err)
	}

	interceptor := brk.UnaryClientInterceptor(constantKey("test-service-fallback"))
	invoker := &errorInvoker{err: status.Error(codes.Unavailable, "service unavailable")}

	t.Run("触发熔断并验证降级", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_ = interceptor(context.Background(), "/test/Method", "req", "reply", nil, invoker.invoke)
		}

		err = interceptor(context.Background(), "/test/Method", "req", "reply", nil, invoker.invoke)
		if !fallbackCalled {
			t.Fatal("fallback should have been called once circuit opened")
		}
		if status.Code(err) != codes.ResourceExhausted {
			t.Errorf("caller should see the fallback response, got: %v", err)
		}
	})
}

func TestUnaryClientInterceptor_MultipleServices(t *testing.T) {
	logger, _ := clog.New(&clog.Config{Level: "error"})

	brk, err := New(&Config{FailureThreshold: 2}, WithLogger(logger))
	if err != nil {
		t.Fatalf("New should not return error, got: %v", err)
	}

	interceptor := brk.UnaryClientInterceptor(WithMethodLevelKey())

	t.Run("不同服务应该独立熔断", func(t *testing.T) {
		// 打挂 svcA，svcB 不受影响
		failing := &errorInvoker{err: status.Error(codes.Unavailable, "down")}
		for i := 0; i < 2; i++ {
			_ = interceptor(context.Background(), "/svcA/Method", "req", "reply", nil, failing.invoke)
		}

		stateA, _ := brk.State("/svcA/Method")
		if stateA != StateOpen {
			t.Fatalf("svcA should be Open, got: %v", stateA)
		}

		healthy := &successInvoker{}
		if err := interceptor(context.Background(), "/svcB/Method", "req", "reply", nil, healthy.invoke); err != nil {
			t.Errorf("svcB should be unaffected, got: %v", err)
		}
		stateB, _ := brk.State("/svcB/Method")
		if stateB != StateClosed {
			t.Errorf("svcB should stay Closed, got: %v", stateB)
		}
	})
}

func TestUnaryClientInterceptor_HalfOpenRecovery(t *testing.T) {
	logger, _ := clog.New(&clog.Config{Level: "error"})
	clock := newFakeClock()

	brk, err := New(&Config{FailureThreshold: 2, ResetTimeout: 30 * time.Second, SuccessThreshold: 1},
		WithLogger(logger), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("New should not return error, got: %v", err)
	}

	serviceKey := "test-half-open"
	interceptor := brk.UnaryClientInterceptor(constantKey(serviceKey))

	t.Run("半开状态后成功调用应该恢复熔断器", func(t *testing.T) {
		failing := &errorInvoker{err: status.Error(codes.Unavailable, "down")}
		for i := 0; i < 2; i++ {
			_ = interceptor(context.Background(), "/test/Method", "req", "reply", nil, failing.invoke)
		}
		state, _ := brk.State(serviceKey)
		if state != StateOpen {
			t.Fatalf("expected StateOpen, got: %v", state)
		}

		// 推进时钟越过 ResetTimeout，探测成功即恢复
		clock.Advance(31 * time.Second)
		healthy := &successInvoker{}
		if err := interceptor(context.Background(), "/test/Method", "req", "reply", nil, healthy.invoke); err != nil {
			t.Fatalf("probe should be admitted, got: %v", err)
		}

		state, err := brk.State(serviceKey)
		if err != nil {
			t.Errorf("State should not return error, got: %v", err)
		}
		if state != StateClosed {
			t.Errorf("expected StateClosed after successful probe, got: %v", state)
		}
	})
}

// ============================================================
// Stream Client Interceptor 测试
// ============================================================

func TestStreamClientInterceptor_PassesStreamThrough(t *testing.T) {
	logger, _ := clog.New(&clog.Config{Level: "error"})
	brk, _ := New(&Config{}, WithLogger(logger))

	mock := &mockClientStream{}
	streamer := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return mock, nil
	}

	interceptor := brk.StreamClientInterceptor(constantKey("test-stream-ok"))

	stream, err := interceptor(context.Background(), nil, nil, "/test/Stream", streamer)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if stream != mock {
		t.Error("interceptor should return the streamer's stream unchanged")
	}
	if err := stream.SendMsg("msg"); err != nil {
		t.Errorf("stream should be usable, got: %v", err)
	}
}

func TestStreamClientInterceptor_CountsEstablishmentFailures(t *testing.T) {
	logger, _ := clog.New(&clog.Config{Level: "error"})
	brk, _ := New(&Config{FailureThreshold: 3, ResetTimeout: time.Hour}, WithLogger(logger))

	interceptor := brk.StreamClientInterceptor(constantKey("test-stream-fail"))

	failStreamer := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return nil, status.Error(codes.Unavailable, "connect failed")
	}

	t.Run("建流失败触发熔断", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, _ = interceptor(context.Background(), nil, nil, "/test/Stream", failStreamer)
		}

		state, _ := brk.State("test-stream-fail")
		if state != StateOpen {
			t.Fatalf("expected StateOpen after 3 failed establishments, got: %v", state)
		}
	})

	t.Run("熔断中返回 ErrOpenState 和 nil 流", func(t *testing.T) {
		stream, err := interceptor(context.Background(), nil, nil, "/test/Stream", failStreamer)
		if !errors.Is(err, ErrOpenState) {
			t.Errorf("expected ErrOpenState, got: %v", err)
		}
		if stream != nil {
			t.Error("expected nil stream while circuit open")
		}
	})
}

func TestStreamClientInterceptor_MessageErrorsNotCounted(t *testing.T) {
	logger, _ := clog.New(&clog.Config{Level: "error"})
	brk, _ := New(&Config{FailureThreshold: 2}, WithLogger(logger))

	mock := &mockClientStream{
		sendFunc: func(m interface{}) error { return status.Error(codes.Unavailable, "send failed") },
	}
	streamer := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return mock, nil
	}

	interceptor := brk.StreamClientInterceptor(constantKey("test-stream-msg"))
	stream, err := interceptor(context.Background(), nil, nil, "/test/Stream", streamer)
	if err != nil {
		t.Fatalf("establishment should succeed, got: %v", err)
	}

	// 门控只统计建流结果，消息收发的错误不计数
	for i := 0; i < 10; i++ {
		_ = stream.SendMsg("msg")
	}
	state, _ := brk.State("test-stream-msg")
	if state != StateClosed {
		t.Errorf("message errors should not trip the breaker, got: %v", state)
	}
}

// TestStreamClientInterceptor_FallbackCannotYieldNilStream 验证：
// 降级函数吞掉熔断错误时，拦截器不能返回 nil 流导致调用方 panic，
// 必须兜底返回错误。
func TestStreamClientInterceptor_FallbackCannotYieldNilStream(t *testing.T) {
	logger, _ := clog.New(&clog.Config{Level: "error"})

	// 吞掉错误的 fallback
	fallback := func(ctx context.Context, key string, err error) error {
		return nil
	}
	brk, _ := New(&Config{FailureThreshold: 2, ResetTimeout: time.Hour},
		WithLogger(logger), WithFallback(fallback))

	interceptor := brk.StreamClientInterceptor(constantKey("test-stream-fallback"))
	failStreamer := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return nil, status.Error(codes.Unavailable, "connect failed")
	}

	for i := 0; i < 2; i++ {
		_, _ = interceptor(context.Background(), nil, nil, "/test/Stream", failStreamer)
	}

	stream, err := interceptor(context.Background(), nil, nil, "/test/Stream", failStreamer)
	if stream != nil {
		t.Error("expected nil stream when fallback swallowed the rejection")
	}
	if !errors.Is(err, ErrOpenState) {
		t.Errorf("expected ErrOpenState as safeguard, got: %v", err)
	}
}

// ============================================================
// InterceptorOption 测试
// ============================================================

func TestInterceptorOption_WithKeyFunc(t *testing.T) {
	logger, _ := clog.New(&clog.Config{Level: "error"})
	brk, err := New(&Config{}, WithLogger(logger))
	if err != nil {
		t.Fatalf("New should not return error, got: %v", err)
	}

	t.Run("多个 WithKeyFunc 应该使用最后一个", func(t *testing.T) {
		interceptor := brk.UnaryClientInterceptor(
			constantKey("first-key"),
			constantKey("second-key"),
		)

		invoker := &successInvoker{}
		_ = interceptor(context.Background(), "/test/Method", "req", "reply", nil, invoker.invoke)

		// gate 只会以第二个 key 建立
		if _, loaded := brk.(*circuitBreaker).gates.Load("second-key"); !loaded {
			t.Error("expected gate for second-key to exist")
		}
		if _, loaded := brk.(*circuitBreaker).gates.Load("first-key"); loaded {
			t.Error("gate for first-key should not exist")
		}
	})

	t.Run("nil KeyFunc 保留默认策略", func(t *testing.T) {
		interceptor := brk.UnaryClientInterceptor(WithKeyFunc(nil))
		if interceptor == nil {
			t.Error("WithKeyFunc(nil) should still return valid interceptor")
		}
	})
}

// TestKeyFuncVariations 测试不同的 KeyFunc
func TestKeyFuncVariations(t *testing.T) {
	ctx := context.Background()
	method := "/pkg.Service/Method"

	t.Run("MethodLevelKey", func(t *testing.T) {
		key := MethodLevelKey()(ctx, method, nil)
		if key != method {
			t.Errorf("MethodLevelKey should return method, got: %s", key)
		}
	})

	t.Run("ServiceLevelKey", func(t *testing.T) {
		// nil ClientConn 时回退到 fullMethod
		key := ServiceLevelKey()(ctx, method, nil)
		if key != method {
			t.Errorf("ServiceLevelKey with nil cc should fall back to method, got: %s", key)
		}
	})

	t.Run("ServiceMethodKey", func(t *testing.T) {
		// nil cc 时服务级退化为 fullMethod，组合结果为 method@method
		key := ServiceMethodKey()(ctx, method, nil)
		if key != method+"@"+method {
			t.Errorf("unexpected ServiceMethodKey, got: %s", key)
		}
	})

	t.Run("CompositeKey", func(t *testing.T) {
		custom := func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
			return "zone-a"
		}
		key := CompositeKey(custom, MethodLevelKey())(ctx, method, nil)
		if key != "zone-a@"+method {
			t.Errorf("CompositeKey should join with @, got: %s", key)
		}
	})

	t.Run("CompositeKeyWithSeparator", func(t *testing.T) {
		custom := func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
			return "zone-a"
		}
		key := CompositeKeyWithSeparator(":", MethodLevelKey(), custom)(ctx, method, nil)
		if key != method+":zone-a" {
			t.Errorf("CompositeKeyWithSeparator should honor separator, got: %s", key)
		}
	})
}
