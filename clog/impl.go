package clog

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// loggerImpl 是 Logger 接口的具体实现
type loggerImpl struct {
	handler   slog.Handler
	config    *Config
	options   *options
	baseAttrs []slog.Attr
}

// newLogger 创建 Logger 实例（内部使用）
func newLogger(config *Config, options *options) (Logger, error) {
	handler, err := newHandler(config, options)
	if err != nil {
		return nil, err
	}

	logger := &loggerImpl{
		handler: handler,
		config:  config,
		options: options,
	}

	logger.setupBaseAttrs()

	return logger, nil
}

func (l *loggerImpl) Debug(msg string, fields ...Field) {
	l.log(context.Background(), DebugLevel, msg, fields...)
}

func (l *loggerImpl) Info(msg string, fields ...Field) {
	l.log(context.Background(), InfoLevel, msg, fields...)
}

func (l *loggerImpl) Warn(msg string, fields ...Field) {
	l.log(context.Background(), WarnLevel, msg, fields...)
}

func (l *loggerImpl) Error(msg string, fields ...Field) {
	l.log(context.Background(), ErrorLevel, msg, fields...)
}

func (l *loggerImpl) Fatal(msg string, fields ...Field) {
	l.log(context.Background(), FatalLevel, msg, fields...)
}

func (l *loggerImpl) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, DebugLevel, msg, fields...)
}

func (l *loggerImpl) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, InfoLevel, msg, fields...)
}

func (l *loggerImpl) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, WarnLevel, msg, fields...)
}

func (l *loggerImpl) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, ErrorLevel, msg, fields...)
}

func (l *loggerImpl) FatalContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, FatalLevel, msg, fields...)
}

func (l *loggerImpl) WithNamespace(parts ...string) Logger {
	newOptions := *l.options
	newOptions.namespaceParts = make([]string, 0, len(l.options.namespaceParts)+len(parts))
	newOptions.namespaceParts = append(newOptions.namespaceParts, l.options.namespaceParts...)
	newOptions.namespaceParts = append(newOptions.namespaceParts, parts...)

	return &loggerImpl{
		handler:   l.handler,
		config:    l.config,
		options:   &newOptions,
		baseAttrs: l.baseAttrs,
	}
}

func (l *loggerImpl) With(fields ...Field) Logger {
	// 复制而不是 append 复用底层数组，避免兄弟 Logger 字段互相污染
	attrs := make([]slog.Attr, 0, len(l.baseAttrs)+len(fields))
	attrs = append(attrs, l.baseAttrs...)
	attrs = append(attrs, fields...)

	return &loggerImpl{
		handler:   l.handler,
		config:    l.config,
		options:   l.options,
		baseAttrs: attrs,
	}
}

// log 组装属性并交给 handler：baseAttrs + fields + context 字段 + namespace。
func (l *loggerImpl) log(ctx context.Context, level Level, msg string, fields ...Field) {
	slogLevel := level.slogLevel()

	// 先做级别检查，被过滤的日志不再组装属性
	if !l.handler.Enabled(ctx, slogLevel) {
		if level == FatalLevel {
			os.Exit(1)
		}
		return
	}

	attrs := make([]slog.Attr, 0, len(l.baseAttrs)+len(fields)+4)
	attrs = append(attrs, l.baseAttrs...)
	attrs = append(attrs, fields...)

	extractContextFields(ctx, l.options, &attrs)
	addNamespaceField(l.options, &attrs)

	// 获取调用方的程序计数器(PC)值，用于准确的源码位置
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip: runtime.Callers, log, Debug/Info/Error 等
	record := slog.NewRecord(time.Now(), slogLevel, msg, pcs[0])
	record.AddAttrs(attrs...)

	_ = l.handler.Handle(ctx, record)

	if level == FatalLevel {
		os.Exit(1)
	}
}

// SetLevel 动态调整日志级别。
func (l *loggerImpl) SetLevel(level Level) error {
	if h, ok := l.handler.(interface{ SetLevel(Level) error }); ok {
		return h.SetLevel(level)
	}
	return nil
}

// Flush 强制同步所有缓冲区的日志。
func (l *loggerImpl) Flush() {
	if h, ok := l.handler.(interface{ Flush() }); ok {
		h.Flush()
	}
}

// setupBaseAttrs 初始化 logger 的基础属性。
func (l *loggerImpl) setupBaseAttrs() {
	l.baseAttrs = []slog.Attr{}
	if l.config.Service != "" {
		l.baseAttrs = append(l.baseAttrs, slog.String("service", l.config.Service))
	}
}
