package idem

import (
	"time"

	"github.com/ceyewan/aegis/xerrors"
)

// DriverType 幂等组件驱动类型
type DriverType string

const (
	// DriverRedis 使用 Redis 作为后端
	DriverRedis DriverType = "redis"
	// DriverMemory 使用内存作为后端（仅单机）
	DriverMemory DriverType = "memory"
)

// Config 幂等性组件配置
type Config struct {
	// Driver 后端类型: "redis" | "memory" (默认 "redis")
	Driver DriverType `json:"driver" yaml:"driver" mapstructure:"driver"`

	// Prefix 存储 Key 前缀，默认 "idem:"
	// 例如："myapp:idem:" 将使用 "myapp:idem:{key}" 作为存储键
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`

	// Serializer 结果序列化方式: "json" | "msgpack" (默认 "json")
	Serializer string `json:"serializer" yaml:"serializer" mapstructure:"serializer"`

	// DefaultTTL 幂等记录有效期，默认 24h
	// 超过此时间后，缓存的结果将被清理，后续相同请求将重新执行
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl" mapstructure:"default_ttl"`

	// LockTTL 处理过程中的锁超时时间，默认 30s
	// 执行期间按 LockTTL/3 自动续期；持有者崩溃后锁最多在一个 LockTTL 内释放
	LockTTL time.Duration `json:"lock_ttl" yaml:"lock_ttl" mapstructure:"lock_ttl"`

	// WaitTimeout 未获取到锁时等待结果的最长时间
	// 默认 0：不等待，直接返回 ErrConcurrentRequest
	WaitTimeout time.Duration `json:"wait_timeout" yaml:"wait_timeout" mapstructure:"wait_timeout"`

	// WaitInterval 等待结果的轮询间隔，默认 50ms
	WaitInterval time.Duration `json:"wait_interval" yaml:"wait_interval" mapstructure:"wait_interval"`

	// Capacity Memory 驱动的结果缓存容量，默认 10000
	Capacity int `json:"capacity" yaml:"capacity" mapstructure:"capacity"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = DriverRedis
	}
	if c.Prefix == "" {
		c.Prefix = "idem:"
	}
	if c.Serializer == "" {
		c.Serializer = "json"
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 24 * time.Hour
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
	if c.WaitInterval <= 0 {
		c.WaitInterval = 50 * time.Millisecond
	}
	if c.Capacity <= 0 {
		c.Capacity = 10000
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverRedis, DriverMemory:
		return nil
	default:
		return xerrors.Wrapf(ErrConfigInvalid, "unsupported driver %q", c.Driver)
	}
}
