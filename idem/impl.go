package idem

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/idem/serializer"
	"github.com/ceyewan/aegis/xerrors"
)

// idem 幂等性组件实现（非导出）
type idem struct {
	cfg     *Config
	store   Store
	ser     serializer.Serializer
	logger  clog.Logger
	metrics *idemMetrics
}

const (
	// processedMarker Consume 写入的完成标记，内容本身无意义
	processedMarker = "1"

	// refreshTimeout 单次锁续期操作的超时
	refreshTimeout = 2 * time.Second
)

// newIdempotency 创建幂等性组件实例（内部函数）
func newIdempotency(cfg *Config, store Store, ser serializer.Serializer, logger clog.Logger, m *idemMetrics) *idem {
	return &idem{
		cfg:     cfg,
		store:   store,
		ser:     ser,
		logger:  logger,
		metrics: m,
	}
}

// Execute 执行幂等操作
func (i *idem) Execute(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}

	cached, token, locked, err := i.waitForResultOrLock(ctx, key)
	if err != nil {
		if xerrors.Is(err, ErrConcurrentRequest) {
			i.metrics.record(ctx, OutcomeConflict)
			i.logger.Debug("concurrent request detected", clog.String("key", key))
		}
		return nil, err
	}

	if !locked {
		var result any
		if err := i.ser.Unmarshal(cached, &result); err != nil {
			i.logger.Error("failed to decode cached result", clog.Error(err), clog.String("key", key))
			return nil, xerrors.Wrap(err, "idem: decode cached result")
		}
		i.metrics.record(ctx, OutcomeHit)
		i.logger.Debug("cache hit", clog.String("key", key))
		return result, nil
	}

	// 执行失败时释放锁，让后续请求可以重试；
	// ctx 已取消导致解锁失败时，锁由 LockTTL 兜底释放。
	lockReleased := false
	defer func() {
		if lockReleased {
			return
		}
		if err := i.store.Unlock(ctx, key, token); err != nil {
			i.logger.Error("failed to release lock", clog.Error(err), clog.String("key", key))
		}
	}()
	stopRefresh := i.startLockRefresh(key, token)
	defer stopRefresh()

	result, err := fn(ctx)
	if err != nil {
		i.logger.Error("execution failed", clog.Error(err), clog.String("key", key))
		return nil, err
	}

	data, err := i.ser.Marshal(result)
	if err != nil {
		i.logger.Error("failed to encode result", clog.Error(err), clog.String("key", key))
		return nil, xerrors.Wrap(err, "idem: encode result")
	}

	if err := i.store.SetResult(ctx, key, data, i.cfg.DefaultTTL, token); err != nil {
		i.logger.Error("failed to store result", clog.Error(err), clog.String("key", key))
		return nil, err
	}
	lockReleased = true

	i.metrics.record(ctx, OutcomeExecuted)
	i.logger.Debug("execution completed and cached", clog.String("key", key))
	return result, nil
}

// Consume 用于消息消费的幂等处理
func (i *idem) Consume(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	if ttl <= 0 {
		ttl = i.cfg.DefaultTTL
	}

	_, token, locked, err := i.waitForResultOrLock(ctx, key)
	if err != nil {
		if xerrors.Is(err, ErrConcurrentRequest) {
			i.metrics.record(ctx, OutcomeConflict)
			i.logger.Debug("concurrent consume detected", clog.String("key", key))
		}
		return false, err
	}

	if !locked {
		i.metrics.record(ctx, OutcomeHit)
		i.logger.Debug("message already consumed", clog.String("key", key))
		return false, nil
	}

	lockReleased := false
	defer func() {
		if lockReleased {
			return
		}
		if err := i.store.Unlock(ctx, key, token); err != nil {
			i.logger.Error("failed to release consume lock", clog.Error(err), clog.String("key", key))
		}
	}()
	stopRefresh := i.startLockRefresh(key, token)
	defer stopRefresh()

	if err := fn(ctx); err != nil {
		i.logger.Error("consume execution failed", clog.Error(err), clog.String("key", key))
		return false, err
	}

	if err := i.store.SetResult(ctx, key, []byte(processedMarker), ttl, token); err != nil {
		i.logger.Error("failed to set consume marker", clog.Error(err), clog.String("key", key))
		return false, err
	}
	lockReleased = true

	i.metrics.record(ctx, OutcomeExecuted)
	i.logger.Debug("message consumed", clog.String("key", key))
	return true, nil
}

// Close 释放存储资源（Memory 驱动停止 otter 后台协程，Redis 驱动为空操作）
func (i *idem) Close() error {
	return i.store.Close()
}

// waitForResultOrLock 返回缓存结果（locked=false）或获取到的锁令牌（locked=true）。
//
// 未能获取锁时的行为由 WaitTimeout 决定：
//   - WaitTimeout <= 0: 立即返回 ErrConcurrentRequest
//   - WaitTimeout > 0: 按 WaitInterval 轮询，直到结果就绪、锁可用、
//     ctx 取消或等待超时（超时同样返回 ErrConcurrentRequest）
func (i *idem) waitForResultOrLock(ctx context.Context, key string) ([]byte, LockToken, bool, error) {
	var deadline time.Time
	if i.cfg.WaitTimeout > 0 {
		deadline = time.Now().Add(i.cfg.WaitTimeout)
	}

	for {
		cached, err := i.store.GetResult(ctx, key)
		if err == nil {
			return cached, "", false, nil
		}
		if !xerrors.Is(err, ErrResultNotFound) {
			i.logger.Error("failed to load cached result", clog.Error(err), clog.String("key", key))
			return nil, "", false, err
		}

		token, ok, err := i.store.Lock(ctx, key, i.cfg.LockTTL)
		if err != nil {
			i.logger.Error("failed to acquire lock", clog.Error(err), clog.String("key", key))
			return nil, "", false, err
		}
		if ok {
			return nil, token, true, nil
		}

		if i.cfg.WaitTimeout <= 0 {
			return nil, "", false, ErrConcurrentRequest
		}
		if time.Now().After(deadline) {
			return nil, "", false, xerrors.Wrapf(ErrConcurrentRequest, "wait %v elapsed", i.cfg.WaitTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, "", false, ctx.Err()
		case <-time.After(i.cfg.WaitInterval):
		}
	}
}

// startLockRefresh 启动锁续期协程，返回停止函数。
//
// 业务执行时间超过 LockTTL 时（例如 fn 内部带重试），按 LockTTL/3 心跳续期
// 保持锁不失效；持有者崩溃后心跳停止，锁最多在一个 LockTTL 内自动释放。
// 存储未实现 RefreshableStore 时不续期。
func (i *idem) startLockRefresh(key string, token LockToken) func() {
	rs, ok := i.store.(RefreshableStore)
	if !ok || i.cfg.LockTTL <= 0 {
		return func() {}
	}

	interval := i.cfg.LockTTL / 3
	if interval < time.Second {
		interval = time.Second
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				refreshCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
				err := rs.Refresh(refreshCtx, key, token, i.cfg.LockTTL)
				cancel()
				if err != nil {
					i.logger.Warn("lock refresh stopped", clog.Error(err), clog.String("key", key))
					return
				}
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}
