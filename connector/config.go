package connector

import (
	"time"

	"github.com/ceyewan/aegis/xerrors"
)

// RedisConfig Redis 连接配置
type RedisConfig struct {
	// 基础配置（可选，有默认值）
	Name           string        `mapstructure:"name" json:"name" yaml:"name"`                                  // 连接器名称 (默认: "default")
	MaxRetries     int           `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries"`             // Connect 的连接尝试次数，含首次 (默认: 3)
	RetryInterval  time.Duration `mapstructure:"retry_interval" json:"retry_interval" yaml:"retry_interval"`    // 连接尝试之间的固定间隔 (默认: 1s)
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" json:"connect_timeout" yaml:"connect_timeout"` // 单次连接尝试超时 (默认: 5s)

	// 核心配置
	Addr     string `mapstructure:"addr" json:"addr" yaml:"addr"`             // [必填] 连接地址，如 "127.0.0.1:6379"
	Password string `mapstructure:"password" json:"password" yaml:"password"` // [可选] 认证密码
	DB       int    `mapstructure:"db" json:"db" yaml:"db"`                   // [可选] 数据库编号 (默认: 0)

	// 高级配置（可选，有默认值）
	PoolSize     int           `mapstructure:"pool_size" json:"pool_size" yaml:"pool_size"`                // 连接池大小 (默认: 10)
	MinIdleConns int           `mapstructure:"min_idle_conns" json:"min_idle_conns" yaml:"min_idle_conns"` // 最小空闲连接数，0 表示不保留 (负值按 5 处理)
	DialTimeout  time.Duration `mapstructure:"dial_timeout" json:"dial_timeout" yaml:"dial_timeout"`       // 拨号超时 (默认: 5s)
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout"`       // 读取超时 (默认: 3s)
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`    // 写入超时 (默认: 3s)
}

// setDefaults 设置默认值
func (c *RedisConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}

	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns < 0 {
		c.MinIdleConns = 5
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// validate 校验配置，缺省字段先补默认值
func (c *RedisConfig) validate() error {
	c.setDefaults()
	if c.Addr == "" {
		return xerrors.Wrap(ErrConfig, "Redis地址不能为空")
	}
	if c.DB < 0 {
		return xerrors.Wrap(ErrConfig, "数据库编号不能小于0")
	}
	return nil
}
