package config

import (
	"strings"

	"github.com/ceyewan/aegis/clog"
)

// Options 加载器的内部配置，只能通过 Option 函数修改
type Options struct {
	Name      string      // 配置文件名称（不含扩展名）
	Paths     []string    // 配置文件搜索路径
	FileType  string      // 配置文件类型 (yaml, json, etc.)
	EnvPrefix string      // 环境变量前缀
	Logger    clog.Logger // 内部事件日志
}

// defaultOptions 返回默认选项
func defaultOptions() *Options {
	return &Options{
		Name:      "config",
		Paths:     []string{".", "./config"},
		FileType:  "yaml",
		EnvPrefix: "AEGIS",
		Logger:    clog.Discard(),
	}
}

// Option 配置选项模式
type Option func(*Options)

// WithConfigName 设置配置文件名称（不带扩展名）
func WithConfigName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithConfigPath 添加配置文件搜索路径
func WithConfigPath(path string) Option {
	return func(o *Options) {
		o.Paths = append(o.Paths, path)
	}
}

// WithConfigPaths 设置配置文件搜索路径（覆盖默认值）
func WithConfigPaths(paths ...string) Option {
	return func(o *Options) {
		o.Paths = paths
	}
}

// WithConfigType 设置配置文件类型 (yaml, json, etc.)
func WithConfigType(typ string) Option {
	return func(o *Options) {
		o.FileType = typ
	}
}

// WithEnvPrefix 设置环境变量前缀，自动转为大写
func WithEnvPrefix(prefix string) Option {
	return func(o *Options) {
		o.EnvPrefix = strings.ToUpper(prefix)
	}
}

// WithLogger 设置日志记录器，用于输出加载过程中的内部事件。
// 组件会自动为 logger 添加 "config" 命名空间。
// 未设置时内部事件不输出日志。
func WithLogger(logger clog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger.WithNamespace("config")
		}
	}
}
