package idem

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/aegis/connector"
	"github.com/ceyewan/aegis/xerrors"
)

// Lua 脚本：仅当锁仍由本令牌持有时才删除/续期，
// 避免锁过期易主后误删其他请求的锁。
const (
	unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

	refreshScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`
)

// redisStore Redis 存储实现（非导出）
type redisStore struct {
	conn   connector.RedisConnector
	prefix string
}

// newRedisStore 创建 Redis 存储实例（内部函数）
func newRedisStore(conn connector.RedisConnector, prefix string) Store {
	return &redisStore{
		conn:   conn,
		prefix: prefix,
	}
}

func (rs *redisStore) Lock(ctx context.Context, key string, ttl time.Duration) (LockToken, bool, error) {
	lockKey := rs.prefix + key + lockSuffix
	token := newLockToken()

	ok, err := rs.conn.GetClient().SetNX(ctx, lockKey, string(token), ttl).Result()
	if err != nil {
		return "", false, xerrors.Wrap(err, "idem: acquire lock")
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (rs *redisStore) Unlock(ctx context.Context, key string, token LockToken) error {
	lockKey := rs.prefix + key + lockSuffix

	// 脚本返回 0 表示锁已过期或易主，无需清理
	if _, err := rs.conn.GetClient().Eval(ctx, unlockScript, []string{lockKey}, string(token)).Result(); err != nil {
		return xerrors.Wrap(err, "idem: release lock")
	}
	return nil
}

func (rs *redisStore) SetResult(ctx context.Context, key string, val []byte, ttl time.Duration, token LockToken) error {
	resultKey := rs.prefix + key + resultSuffix
	lockKey := rs.prefix + key + lockSuffix

	// pipeline 一次往返完成写结果 + 安全解锁
	pipe := rs.conn.GetClient().Pipeline()
	pipe.Set(ctx, resultKey, val, ttl)
	pipe.Eval(ctx, unlockScript, []string{lockKey}, string(token))

	if _, err := pipe.Exec(ctx); err != nil {
		return xerrors.Wrap(err, "idem: store result")
	}
	return nil
}

func (rs *redisStore) GetResult(ctx context.Context, key string) ([]byte, error) {
	resultKey := rs.prefix + key + resultSuffix

	val, err := rs.conn.GetClient().Get(ctx, resultKey).Bytes()
	if err == redis.Nil {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, xerrors.Wrap(err, "idem: load result")
	}
	return val, nil
}

func (rs *redisStore) Refresh(ctx context.Context, key string, token LockToken, ttl time.Duration) error {
	lockKey := rs.prefix + key + lockSuffix

	res, err := rs.conn.GetClient().Eval(ctx, refreshScript, []string{lockKey}, string(token), ttl.Milliseconds()).Result()
	if err != nil {
		return xerrors.Wrap(err, "idem: refresh lock")
	}
	if n, ok := res.(int64); ok && n == 0 {
		return xerrors.Wrapf(ErrOwnershipLost, "key: %s", key)
	}
	return nil
}

// Close 不关闭注入的连接器，连接的生命周期由调用方管理
func (rs *redisStore) Close() error {
	return nil
}
