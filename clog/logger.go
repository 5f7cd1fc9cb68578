// Package clog 为 aegis 提供基于 slog 的结构化日志组件。
// 支持 Context 字段提取和命名空间管理。
//
// 特性：
//   - 抽象接口，不暴露底层实现（slog）
//   - 支持层级命名空间，便于区分 retry/breaker/guard 等组件的日志
//   - 仅依赖 Go 标准库
//   - 采用函数式选项模式，符合 aegis 组件规范
//   - 支持多种错误字段：Error、ErrorWithCode、ErrorWithStack
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "console",
//	    Output: "stdout",
//	})
//	logger.Info("Hello, World!", clog.String("key", "value"))
//
// 使用函数式选项：
//
//	logger, _ := clog.New(&clog.Config{Level: "info"},
//	    clog.WithNamespace("exchange-client", "api"),
//	    clog.WithStandardContext(), // 自动提取 trace_id, user_id, request_id
//	)
//
// 带 Context 的日志：
//
//	logger.InfoContext(ctx, "Request processed")
package clog

import "context"

// Logger 日志接口，提供结构化日志记录功能
//
// 支持五个日志级别：Debug、Info、Warn、Error、Fatal。
// 每个级别都有带 Context 和不带 Context 的版本。
//
// 基本使用：
//
//	logger.Info("order submitted", clog.String("order_id", id))
//
// 带 Context 的使用：
//
//	logger.InfoContext(ctx, "request processed")
//	// 会自动从 Context 中提取配置的字段
//
// 创建子 Logger：
//
//	child := logger.With(clog.String("component", "retry"))
//	scoped := logger.WithNamespace("breaker")
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// 带 Context 的版本，自动提取配置的 Context 字段
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger，预设字段出现在后续所有日志中。
	With(fields ...Field) Logger

	// WithNamespace 创建一个扩展命名空间的子 Logger。
	//
	// 命名空间以 "." 连接并追加到现有命名空间之后：
	//
	//	logger := clog.WithNamespace("aegis")
	//	child := logger.WithNamespace("breaker")
	//	// 最终命名空间为 "aegis.breaker"
	WithNamespace(parts ...string) Logger

	// SetLevel 运行时动态调整日志级别，不需要重新创建 Logger。
	SetLevel(level Level) error

	// Flush 强制同步所有缓冲区的日志。标准 slog 处理器是同步的，此方法为空操作，
	// 保留在接口上是为了兼容异步处理器。
	Flush()
}
