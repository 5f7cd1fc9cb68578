package connector

import (
	"context"
	"sync/atomic"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/retry"
	"github.com/ceyewan/aegis/xerrors"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
)

type redisConnector struct {
	cfg     *RedisConfig
	client  *redis.Client
	logger  clog.Logger
	retryer retry.Retryer
	healthy atomic.Bool
	closed  atomic.Bool
}

// NewRedis 创建 Redis 连接器。
//
// 客户端立即创建（连接池本身是惰性的），真正的连通性验证在 Connect 时进行。
// cfg 不会被修改，零值字段使用默认值。
func NewRedis(cfg *RedisConfig, opts ...Option) (RedisConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "redis config is nil")
	}
	clone := *cfg
	if err := clone.validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid redis config")
	}

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	c := &redisConnector{
		cfg:    &clone,
		logger: opt.logger.With(clog.String("connector", "redis"), clog.String("name", clone.Name)),
	}

	// Connect 的建连重试走 retry 引擎：固定间隔、无抖动
	noJitter := false
	c.retryer = retry.Must(&retry.Config{
		MaxAttempts:  clone.MaxRetries,
		InitialDelay: clone.RetryInterval,
		MaxDelay:     clone.RetryInterval,
		Multiplier:   1.0,
		Jitter:       &noJitter,
	}, retry.WithLogger(c.logger), retry.WithMeter(opt.meter))

	// 创建 Redis 客户端
	c.client = redis.NewClient(&redis.Options{
		Addr:         clone.Addr,
		Password:     clone.Password,
		DB:           clone.DB,
		PoolSize:     clone.PoolSize,
		MinIdleConns: clone.MinIdleConns,
		DialTimeout:  clone.DialTimeout,
		ReadTimeout:  clone.ReadTimeout,
		WriteTimeout: clone.WriteTimeout,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})

	return c, nil
}

// Connect 建立连接并验证连通性。
//
// 按 MaxRetries/RetryInterval 做固定间隔重试，每次尝试受 ConnectTimeout 约束。
// 幂等，可安全重复调用。
func (c *redisConnector) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}
	c.logger.Info("attempting to connect to redis", clog.String("addr", c.cfg.Addr))

	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
		return c.client.Ping(pingCtx).Err()
	})
	if err != nil {
		c.healthy.Store(false)
		c.logger.Error("failed to connect to redis", clog.Error(err), clog.String("addr", c.cfg.Addr))
		return xerrors.Wrapf(err, "redis connector[%s]: connection failed", c.cfg.Name)
	}

	c.healthy.Store(true)
	c.logger.Info("successfully connected to redis", clog.String("addr", c.cfg.Addr))

	return nil
}

// Close 关闭连接。幂等，重复调用返回 nil。
func (c *redisConnector) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.logger.Info("closing redis connection", clog.String("addr", c.cfg.Addr))
	c.healthy.Store(false)

	if err := c.client.Close(); err != nil {
		c.logger.Error("failed to close redis connection", clog.Error(err))
		return err
	}
	c.logger.Info("redis connection closed successfully")
	return nil
}

// HealthCheck 检查连接健康状态，并刷新 IsHealthy 的缓存结果。
func (c *redisConnector) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("redis health check failed", clog.Error(err))
		return xerrors.Wrapf(err, "redis connector[%s]: health check failed", c.cfg.Name)
	}

	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *redisConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接器名称
func (c *redisConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回 Redis 客户端
func (c *redisConnector) GetClient() *redis.Client {
	return c.client
}
