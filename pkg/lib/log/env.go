package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// 环境变量
const (
	// EnvLogLevel 日志级别，格式: 子系统=级别,子系统=级别,默认级别
	// 示例: core/transport=warn,core/protocol=debug,info
	EnvLogLevel = "P2P_LOG_LEVEL"

	// EnvLogFormat 日志格式 (text 或 json)
	EnvLogFormat = "P2P_LOG_FORMAT"
)

// LogFormat 日志输出格式
type LogFormat int

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// SubsystemLevels 各组件的日志级别
	SubsystemLevels map[string]slog.Level

	// Format 输出格式
	Format LogFormat

	// AddSource 是否添加源码位置
	AddSource bool
}

// LevelForSubsystem 获取指定组件的日志级别
func (c Config) LevelForSubsystem(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

func (c Config) minLevel() slog.Level {
	lowest := c.DefaultLevel
	for _, level := range c.SubsystemLevels {
		if level < lowest {
			lowest = level
		}
	}
	return lowest
}

// ConfigFromEnv 从环境变量解析配置
func ConfigFromEnv() Config {
	cfg := Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}

	if levelStr := os.Getenv(EnvLogLevel); levelStr != "" {
		ParseLevelConfig(&cfg, levelStr)
	}

	if strings.EqualFold(os.Getenv(EnvLogFormat), "json") {
		cfg.Format = FormatJSON
	}

	return cfg
}

// SetupFromEnv 按环境变量配置默认 logger
func SetupFromEnv(w io.Writer) {
	Configure(w, ConfigFromEnv())
}

// ParseLevelConfig 解析日志级别配置字符串
//
// 格式: subsystem=level,subsystem=level,defaultLevel
// 无法识别的级别名会被忽略。
func ParseLevelConfig(cfg *Config, levelStr string) {
	for _, part := range strings.Split(levelStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		subsystem, levelName, found := strings.Cut(part, "=")
		if !found {
			if level, ok := ParseLevel(part); ok {
				cfg.DefaultLevel = level
			}
			continue
		}

		if level, ok := ParseLevel(strings.TrimSpace(levelName)); ok {
			cfg.SubsystemLevels[strings.TrimSpace(subsystem)] = level
		}
	}
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
