package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ceyewan/aegis/failure"
)

// tripSliding 用失败把滑动窗口门控的 key 打到 Open 状态
func tripSliding(t *testing.T, brk Breaker, key string, failures int) {
	t.Helper()
	boom := errors.New("connection refused")
	for i := 0; i < failures; i++ {
		_ = brk.Execute(context.Background(), key, failOp(boom))
	}
	state, err := brk.State(key)
	if err != nil {
		t.Fatalf("State should not return error, got: %v", err)
	}
	if state != StateOpen {
		t.Fatalf("expected StateOpen after %d failures, got: %v", failures, state)
	}
}

// TestNewSlidingRatio 测试滑动窗口熔断器创建
func TestNewSlidingRatio(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *SlidingConfig
		wantErr error
	}{
		{
			name: "完整配置",
			cfg: &SlidingConfig{
				MaxRequests:     5,
				Interval:        60 * time.Second,
				Timeout:         30 * time.Second,
				FailureRatio:    0.6,
				MinimumRequests: 10,
			},
		},
		{
			name: "零值配置使用默认值",
			cfg:  &SlidingConfig{},
		},
		{
			name:    "nil 配置报错",
			cfg:     nil,
			wantErr: ErrConfigNil,
		},
		{
			name:    "失败率超过 1 报错",
			cfg:     &SlidingConfig{FailureRatio: 1.5},
			wantErr: ErrConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			brk, err := NewSlidingRatio(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got: %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSlidingRatio should not return error, got: %v", err)
			}
			if brk == nil {
				t.Fatal("NewSlidingRatio should return a valid breaker")
			}
		})
	}
}

// TestSlidingConfigDefaults 测试滑动窗口配置默认值
func TestSlidingConfigDefaults(t *testing.T) {
	cfg := &SlidingConfig{}
	cfg.setDefaults()

	if cfg.MaxRequests != 1 {
		t.Errorf("default MaxRequests should be 1, got: %d", cfg.MaxRequests)
	}
	if cfg.Interval != 0 {
		t.Errorf("default Interval should be 0, got: %v", cfg.Interval)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("default Timeout should be 60s, got: %v", cfg.Timeout)
	}
	if cfg.FailureRatio != 0.6 {
		t.Errorf("default FailureRatio should be 0.6, got: %f", cfg.FailureRatio)
	}
	if cfg.MinimumRequests != 10 {
		t.Errorf("default MinimumRequests should be 10, got: %d", cfg.MinimumRequests)
	}
}

// TestSlidingEmptyKey 测试空 key 的处理
func TestSlidingEmptyKey(t *testing.T) {
	brk, _ := NewSlidingRatio(&SlidingConfig{})

	if err := brk.Execute(context.Background(), "", okOp); !errors.Is(err, ErrKeyEmpty) {
		t.Error("Execute with empty key should return ErrKeyEmpty")
	}
	if _, err := brk.State(""); !errors.Is(err, ErrKeyEmpty) {
		t.Error("State with empty key should return ErrKeyEmpty")
	}
	if _, err := brk.Stats(""); !errors.Is(err, ErrKeyEmpty) {
		t.Error("Stats with empty key should return ErrKeyEmpty")
	}
}

// TestSlidingPassesThroughResult 测试操作结果透传
func TestSlidingPassesThroughResult(t *testing.T) {
	brk, _ := NewSlidingRatio(&SlidingConfig{})

	if err := brk.Execute(context.Background(), "svc", okOp); err != nil {
		t.Errorf("success should pass through as nil, got: %v", err)
	}

	boom := errors.New("downstream exploded")
	err := brk.Execute(context.Background(), "svc", failOp(boom))
	if !errors.Is(err, boom) {
		t.Errorf("operation error should pass through verbatim, got: %v", err)
	}
}

// TestSlidingTripsOnFailureRatio 测试失败率触发熔断
func TestSlidingTripsOnFailureRatio(t *testing.T) {
	brk, _ := NewSlidingRatio(&SlidingConfig{
		Timeout:         time.Hour,
		FailureRatio:    0.5,
		MinimumRequests: 4,
	})
	ctx := context.Background()
	boom := errors.New("read tcp: reset by peer")

	// 2 成功 + 2 失败 = 失败率 0.5，达到最小请求数后触发
	_ = brk.Execute(ctx, "svc", okOp)
	_ = brk.Execute(ctx, "svc", okOp)
	_ = brk.Execute(ctx, "svc", failOp(boom))
	_ = brk.Execute(ctx, "svc", failOp(boom))

	state, _ := brk.State("svc")
	if state != StateOpen {
		t.Fatalf("failure ratio 0.5 at 4 requests should trip, got: %v", state)
	}

	// 熔断中快速失败且不触达下游
	invoked := 0
	err := brk.Execute(ctx, "svc", func(ctx context.Context) error {
		invoked++
		return nil
	})
	if !errors.Is(err, ErrOpenState) {
		t.Fatalf("expected ErrOpenState, got: %v", err)
	}
	if invoked != 0 {
		t.Errorf("operation should not run while circuit open, ran %d times", invoked)
	}
	if !failure.IsKind(err, failure.KindCircuitOpen) {
		t.Error("rejection should classify as KindCircuitOpen")
	}
}

// TestSlidingBelowMinimumNeverTrips 测试请求数不足时不熔断
func TestSlidingBelowMinimumNeverTrips(t *testing.T) {
	brk, _ := NewSlidingRatio(&SlidingConfig{
		FailureRatio:    0.5,
		MinimumRequests: 10,
	})
	boom := errors.New("kaput")

	// 全部失败但请求数未达到阈值
	for i := 0; i < 5; i++ {
		_ = brk.Execute(context.Background(), "svc", failOp(boom))
	}
	state, _ := brk.State("svc")
	if state != StateClosed {
		t.Errorf("below minimum requests should stay Closed, got: %v", state)
	}
}

// TestSlidingCountsAllErrors 测试滑动窗口门控对任何错误计数
// （与连续失败门控不同，不做 failure 分类过滤）
func TestSlidingCountsAllErrors(t *testing.T) {
	brk, _ := NewSlidingRatio(&SlidingConfig{
		Timeout:         time.Hour,
		FailureRatio:    0.5,
		MinimumRequests: 2,
	})
	ctx := context.Background()

	// 永久性失败也计入统计
	rejected := failure.Rejected("invalid argument")
	_ = brk.Execute(ctx, "svc", failOp(rejected))
	_ = brk.Execute(ctx, "svc", failOp(rejected))

	state, _ := brk.State("svc")
	if state != StateOpen {
		t.Errorf("ratio gate should count permanent failures too, got: %v", state)
	}
}

// TestSlidingStats 测试状态快照
func TestSlidingStats(t *testing.T) {
	brk, _ := NewSlidingRatio(&SlidingConfig{MinimumRequests: 100})
	ctx := context.Background()

	t.Run("未见过的 key 返回零值快照", func(t *testing.T) {
		stats, err := brk.Stats("never-seen")
		if err != nil {
			t.Fatalf("Stats should not return error, got: %v", err)
		}
		if stats.State != StateClosed || stats.ConsecutiveFailures != 0 {
			t.Errorf("unknown key should report zero stats, got: %+v", stats)
		}
	})

	t.Run("连续失败计数来自 gobreaker", func(t *testing.T) {
		boom := errors.New("boom")
		_ = brk.Execute(ctx, "svc", failOp(boom))
		_ = brk.Execute(ctx, "svc", failOp(boom))

		stats, err := brk.Stats("svc")
		if err != nil {
			t.Fatalf("Stats should not return error, got: %v", err)
		}
		if stats.State != StateClosed {
			t.Errorf("expected StateClosed, got: %v", stats.State)
		}
		if stats.ConsecutiveFailures != 2 {
			t.Errorf("expected 2 consecutive failures, got: %d", stats.ConsecutiveFailures)
		}

		_ = brk.Execute(ctx, "svc", okOp)
		stats, _ = brk.Stats("svc")
		if stats.ConsecutiveFailures != 0 {
			t.Errorf("success should reset consecutive failures, got: %d", stats.ConsecutiveFailures)
		}
		if stats.ConsecutiveSuccesses != 1 {
			t.Errorf("expected 1 consecutive success, got: %d", stats.ConsecutiveSuccesses)
		}
	})

	t.Run("TimeUntilReset 恒为 0", func(t *testing.T) {
		tripBrk, _ := NewSlidingRatio(&SlidingConfig{
			Timeout:         time.Hour,
			FailureRatio:    0.5,
			MinimumRequests: 2,
		})
		tripSliding(t, tripBrk, "svc", 2)

		stats, _ := tripBrk.Stats("svc")
		if stats.State != StateOpen {
			t.Fatalf("expected StateOpen, got: %v", stats.State)
		}
		if stats.TimeUntilReset != 0 {
			t.Errorf("ratio gate should not expose reset countdown, got: %v", stats.TimeUntilReset)
		}
	})
}

// TestSlidingFallback 测试熔断中触发降级
func TestSlidingFallback(t *testing.T) {
	var gotKey string
	var gotErr error
	fallback := func(ctx context.Context, key string, err error) error {
		gotKey = key
		gotErr = err
		return nil
	}

	brk, _ := NewSlidingRatio(&SlidingConfig{
		Timeout:         time.Hour,
		FailureRatio:    0.5,
		MinimumRequests: 2,
	}, WithFallback(fallback))
	tripSliding(t, brk, "svc", 2)

	err := brk.Execute(context.Background(), "svc", okOp)
	if err != nil {
		t.Errorf("successful fallback should return nil, got: %v", err)
	}
	if gotKey != "svc" {
		t.Errorf("fallback should receive the key, got: %q", gotKey)
	}
	if !errors.Is(gotErr, ErrOpenState) {
		t.Errorf("fallback should receive ErrOpenState, got: %v", gotErr)
	}
}

// TestSlidingOnStateChange 测试状态转换回调
func TestSlidingOnStateChange(t *testing.T) {
	rec := &transitionRecorder{}
	brk, _ := NewSlidingRatio(&SlidingConfig{
		Timeout:         time.Hour,
		FailureRatio:    0.5,
		MinimumRequests: 2,
	}, WithOnStateChange(rec.record))
	tripSliding(t, brk, "svc", 2)

	got := rec.all()
	if len(got) != 1 || got[0] != "closed->open" {
		t.Errorf("expected [closed->open], got: %v", got)
	}
}

// TestSlidingKeysIsolated 测试按键隔离
func TestSlidingKeysIsolated(t *testing.T) {
	brk, _ := NewSlidingRatio(&SlidingConfig{
		Timeout:         time.Hour,
		FailureRatio:    0.5,
		MinimumRequests: 2,
	})
	tripSliding(t, brk, "orders-api", 2)

	if err := brk.Execute(context.Background(), "quotes-api", okOp); err != nil {
		t.Errorf("other key should be unaffected, got: %v", err)
	}
	state, _ := brk.State("quotes-api")
	if state != StateClosed {
		t.Errorf("other key should stay Closed, got: %v", state)
	}
}

// TestSlidingRecoveryAfterTimeout 测试超时后探测恢复
// gobreaker 不支持注入时钟，这里用真实短睡眠
func TestSlidingRecoveryAfterTimeout(t *testing.T) {
	brk, _ := NewSlidingRatio(&SlidingConfig{
		MaxRequests:     1,
		Timeout:         50 * time.Millisecond,
		FailureRatio:    0.5,
		MinimumRequests: 2,
	})
	tripSliding(t, brk, "svc", 2)

	time.Sleep(120 * time.Millisecond)

	// 半开探测成功，MaxRequests=1 时一次成功即恢复
	if err := brk.Execute(context.Background(), "svc", okOp); err != nil {
		t.Fatalf("probe should be admitted after timeout, got: %v", err)
	}
	state, _ := brk.State("svc")
	if state != StateClosed {
		t.Errorf("successful probe should close the circuit, got: %v", state)
	}
}

// TestSlidingUnaryInterceptor 测试滑动窗口门控的 gRPC 拦截器
func TestSlidingUnaryInterceptor(t *testing.T) {
	brk, _ := NewSlidingRatio(&SlidingConfig{
		Timeout:         time.Hour,
		FailureRatio:    0.5,
		MinimumRequests: 2,
	})

	interceptor := brk.UnaryClientInterceptor(constantKey("sliding-grpc"))

	t.Run("成功调用透传", func(t *testing.T) {
		invoker := &successInvoker{}
		if err := interceptor(context.Background(), "/test/Method", "req", "reply", nil, invoker.invoke); err != nil {
			t.Errorf("expected no error, got: %v", err)
		}
	})

	t.Run("失败率达标后熔断", func(t *testing.T) {
		failing := &errorInvoker{err: errors.New("down")}
		for i := 0; i < 3; i++ {
			_ = interceptor(context.Background(), "/test/Method", "req", "reply", nil, failing.invoke)
		}

		counting := &countingInvoker{}
		err := interceptor(context.Background(), "/test/Method", "req", "reply", nil, counting.invoke)
		if !errors.Is(err, ErrOpenState) {
			t.Fatalf("expected ErrOpenState, got: %v", err)
		}
		if counting.count != 0 {
			t.Errorf("invoker should not run while circuit open, ran %d times", counting.count)
		}
	})
}
