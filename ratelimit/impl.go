package ratelimit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/xerrors"
)

// bucket 包装 rate.Limiter 并记录最后访问时间（unix 纳秒）。
// rate.Limiter 自身并发安全，lastSeen 用原子量维护，桶上没有额外的锁。
type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

func (b *bucket) touch() {
	b.lastSeen.Store(time.Now().UnixNano())
}

// standaloneLimiter 单机限流器实现（非导出）
type standaloneLimiter struct {
	cfg       *Config
	logger    clog.Logger
	metrics   *limiterMetrics
	buckets   sync.Map // map[string]*bucket
	stopCh    chan struct{}
	closeOnce sync.Once
}

func newStandalone(cfg *Config, opt *options) (Limiter, error) {
	l := &standaloneLimiter{
		cfg:     cfg,
		logger:  opt.logger,
		metrics: newLimiterMetrics(opt.meter),
		stopCh:  make(chan struct{}),
	}

	go l.cleanup(cfg.CleanupInterval, cfg.IdleTimeout)

	l.logger.Info("rate limiter created",
		clog.Int("rules", len(cfg.Rules)),
		clog.Duration("cleanup_interval", cfg.CleanupInterval),
		clog.Duration("idle_timeout", cfg.IdleTimeout))

	return l, nil
}

// Allow 尝试获取 1 个令牌
func (l *standaloneLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN 尝试获取 N 个令牌
func (l *standaloneLimiter) AllowN(ctx context.Context, key string, n int) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	if n <= 0 {
		return false, xerrors.Wrapf(ErrInvalidLimit, "n %d must be positive", n)
	}

	limit, ok := l.limitFor(key)
	if !ok {
		// 未命中任何规则的 key 不限流
		return true, nil
	}

	b := l.getBucket(key, limit)
	allowed := b.limiter.AllowN(time.Now(), n)
	b.touch()

	if allowed {
		l.metrics.recordAllowed(ctx, key)
	} else {
		l.metrics.recordDenied(ctx, key)
		l.logger.Debug("rate limit denied",
			clog.String("key", key),
			clog.Float64("rate", limit.Rate),
			clog.Int("burst", limit.Burst),
			clog.Int("requested", n))
	}

	return allowed, nil
}

// Wait 阻塞等待直到获取 1 个令牌
func (l *standaloneLimiter) Wait(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	limit, ok := l.limitFor(key)
	if !ok {
		return nil
	}

	b := l.getBucket(key, limit)
	b.touch()
	err := b.limiter.Wait(ctx)
	b.touch()

	if err != nil {
		l.logger.Debug("rate limit wait aborted",
			clog.String("key", key),
			clog.Error(err))
		return err
	}
	return nil
}

// LimitFor 返回 key 命中的限流规则
func (l *standaloneLimiter) LimitFor(key string) (Limit, bool) {
	if key == "" {
		return Limit{}, false
	}
	return l.limitFor(key)
}

// limitFor 规则解析：精确匹配 > 最长前缀匹配 > Default
func (l *standaloneLimiter) limitFor(key string) (Limit, bool) {
	if limit, ok := l.cfg.Rules[key]; ok {
		return limit, true
	}

	var (
		best    Limit
		bestLen = -1
	)
	for prefix, limit := range l.cfg.Rules {
		if len(prefix) > bestLen && strings.HasPrefix(key, prefix) {
			best = limit
			bestLen = len(prefix)
		}
	}
	if bestLen >= 0 {
		return best, true
	}

	if l.cfg.Default.valid() {
		return l.cfg.Default, true
	}
	return Limit{}, false
}

// getBucket 获取或创建指定 key 的令牌桶。
// 规则在构造时就已固定，桶直接按 key 缓存。
func (l *standaloneLimiter) getBucket(key string, limit Limit) *bucket {
	if v, ok := l.buckets.Load(key); ok {
		return v.(*bucket)
	}

	b := &bucket{limiter: rate.NewLimiter(rate.Limit(limit.Rate), limit.Burst)}
	b.touch()

	actual, _ := l.buckets.LoadOrStore(key, b)
	return actual.(*bucket)
}

// cleanup 定期清理空闲的令牌桶
func (l *standaloneLimiter) cleanup(interval, idleTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now().UnixNano()
			count := 0

			l.buckets.Range(func(key, value any) bool {
				b := value.(*bucket)
				if now-b.lastSeen.Load() > int64(idleTimeout) {
					l.buckets.Delete(key)
					count++
				}
				return true
			})

			if count > 0 {
				l.logger.Debug("cleaned up idle buckets", clog.Int("count", count))
			}

		case <-l.stopCh:
			return
		}
	}
}

// Close 停止后台清理。幂等。
func (l *standaloneLimiter) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopCh)
		l.logger.Info("rate limiter closed")
	})
	return nil
}
