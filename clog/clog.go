package clog

import "fmt"

// New 创建一个新的 Logger 实例
//
// config - 日志配置，如果为 nil 会使用 NewDefaultConfig("aegis")
// opts   - 函数式选项列表，用于命名空间、Context 字段等配置
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDefaultConfig("aegis")
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	options := applyOptions(opts...)

	return newLogger(config, options)
}

// Must 与 New 相同，但在配置非法时 panic。适合示例程序和初始化阶段。
func Must(config *Config, opts ...Option) Logger {
	logger, err := New(config, opts...)
	if err != nil {
		panic(fmt.Sprintf("clog: %v", err))
	}
	return logger
}

// NewDefaultConfig 返回面向生产环境的默认配置：info 级别、JSON 格式、stdout 输出。
// service 作为 service 字段出现在每条日志中。
func NewDefaultConfig(service string) *Config {
	return &Config{
		Level:   "info",
		Format:  "json",
		Output:  "stdout",
		Service: service,
	}
}

// NewDevDefaultConfig 返回面向开发环境的默认配置：debug 级别、彩色 console 输出、
// 带调用位置。service 作为 service 字段出现在每条日志中。
func NewDevDefaultConfig(service string) *Config {
	return &Config{
		Level:       "debug",
		Format:      "console",
		Output:      "stdout",
		EnableColor: true,
		AddSource:   true,
		Service:     service,
	}
}
