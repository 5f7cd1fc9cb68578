package idem

import (
	"context"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/ceyewan/aegis/xerrors"
)

// memoryMaxTTL 写入过期策略的基准 TTL（100年，模拟永久），
// 实际过期时间在写入后通过 SetExpiresAfter 按条目覆盖。
const memoryMaxTTL = 24 * 365 * 100 * time.Hour

// memoryStore 内存存储实现（非导出，仅用于单机）
//
// 锁表与结果表分别放在两个 otter 缓存中，条目过期由 otter 负责；
// mu 仅用于串行化锁的"检查-写入"，保证同一 key 的互斥获取。
type memoryStore struct {
	prefix  string
	mu      sync.Mutex
	locks   *otter.Cache[string, LockToken]
	results *otter.Cache[string, []byte]
}

func newMemoryStore(prefix string, capacity int) (Store, error) {
	locks, err := otter.New(&otter.Options[string, LockToken]{
		MaximumSize:      capacity,
		ExpiryCalculator: otter.ExpiryWriting[string, LockToken](memoryMaxTTL),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "idem: build lock cache")
	}

	results, err := otter.New(&otter.Options[string, []byte]{
		MaximumSize:      capacity,
		ExpiryCalculator: otter.ExpiryWriting[string, []byte](memoryMaxTTL),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "idem: build result cache")
	}

	return &memoryStore{
		prefix:  prefix,
		locks:   locks,
		results: results,
	}, nil
}

func (ms *memoryStore) Lock(ctx context.Context, key string, ttl time.Duration) (LockToken, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	lockKey := ms.prefix + key + lockSuffix

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.locks.GetIfPresent(lockKey); ok {
		return "", false, nil
	}

	token := newLockToken()
	ms.locks.Set(lockKey, token)
	ms.locks.SetExpiresAfter(lockKey, ttl)
	return token, true, nil
}

func (ms *memoryStore) Unlock(ctx context.Context, key string, token LockToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lockKey := ms.prefix + key + lockSuffix

	ms.mu.Lock()
	defer ms.mu.Unlock()

	// 锁已过期或易主时无需清理
	if cur, ok := ms.locks.GetIfPresent(lockKey); ok && cur == token {
		ms.locks.Invalidate(lockKey)
	}
	return nil
}

func (ms *memoryStore) SetResult(ctx context.Context, key string, val []byte, ttl time.Duration, token LockToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	resultKey := ms.prefix + key + resultSuffix
	lockKey := ms.prefix + key + lockSuffix
	valCopy := append([]byte(nil), val...)

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.results.Set(resultKey, valCopy)
	ms.results.SetExpiresAfter(resultKey, ttl)

	if cur, ok := ms.locks.GetIfPresent(lockKey); ok && cur == token {
		ms.locks.Invalidate(lockKey)
	}
	return nil
}

func (ms *memoryStore) GetResult(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resultKey := ms.prefix + key + resultSuffix

	val, ok := ms.results.GetIfPresent(resultKey)
	if !ok {
		return nil, ErrResultNotFound
	}
	return append([]byte(nil), val...), nil
}

func (ms *memoryStore) Refresh(ctx context.Context, key string, token LockToken, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	lockKey := ms.prefix + key + lockSuffix

	ms.mu.Lock()
	defer ms.mu.Unlock()

	cur, ok := ms.locks.GetIfPresent(lockKey)
	if !ok || cur != token {
		return xerrors.Wrapf(ErrOwnershipLost, "key: %s", key)
	}
	ms.locks.SetExpiresAfter(lockKey, ttl)
	return nil
}

func (ms *memoryStore) Close() error {
	ms.locks.StopAllGoroutines()
	ms.results.StopAllGoroutines()
	return nil
}
