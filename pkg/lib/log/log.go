// Package log 提供统一日志接口
//
// 基于 Go 标准库 log/slog 封装，提供按组件命名的 LazyLogger。
// 组件级别可通过环境变量配置，见 env.go。
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	levelsMu sync.RWMutex
	levels   = Config{DefaultLevel: slog.LevelInfo, SubsystemLevels: map[string]slog.Level{}}
)

// Default 返回默认 logger
func Default() *slog.Logger {
	return slog.Default()
}

// SetOutputWithLevel 同时设置日志输出目标和默认级别
//
// 重新创建默认 logger，将输出重定向到指定的 Writer。
//
// 示例：
//
//	file, _ := os.OpenFile("node.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
//	log.SetOutputWithLevel(file, slog.LevelDebug)
func SetOutputWithLevel(w io.Writer, level slog.Level) {
	Configure(w, Config{DefaultLevel: level, SubsystemLevels: map[string]slog.Level{}})
}

// Configure 按配置重建默认 logger
//
// 底层 handler 放行所有级别中最低的那个，组件过滤由 LazyLogger 完成。
func Configure(w io.Writer, cfg Config) {
	if cfg.SubsystemLevels == nil {
		cfg.SubsystemLevels = map[string]slog.Level{}
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.minLevel(),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			// 简化时间键名
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	levelsMu.Lock()
	levels = cfg
	levelsMu.Unlock()

	slog.SetDefault(slog.New(handler))
}

// levelFor 返回组件的生效级别
func levelFor(component string) slog.Level {
	levelsMu.RLock()
	defer levelsMu.RUnlock()
	return levels.LevelForSubsystem(component)
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都从 slog.Default() 获取最新的 handler，
// 支持在运行时动态切换日志输出目标。
//
// 使用方式：
//
//	var logger = log.Logger("core/protocol")
//	logger.Info("协议已启动", "listenAddr", addr)
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if level < levelFor(l.component) {
		return
	}
	slog.Default().With("component", l.component).Log(ctx, level, msg, args...)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args...)
}

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

// InfoContext 带 context 的 Info 日志
func (l *LazyLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

// Enabled 检查组件是否启用指定级别
func (l *LazyLogger) Enabled(level slog.Level) bool {
	return level >= levelFor(l.component)
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

func init() {
	Configure(os.Stderr, levels)
}
