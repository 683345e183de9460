package muxer

import (
	"io"
	"time"

	"github.com/hashicorp/yamux"
)

// Config 多路复用配置
type Config struct {
	// MaxStreams 未被接受的入站流上限
	MaxStreams int

	// MaxStreamWindowSize 单流接收窗口
	MaxStreamWindowSize uint32

	// KeepAliveInterval 心跳间隔
	KeepAliveInterval time.Duration

	// WriteTimeout 写超时，也用作心跳超时
	WriteTimeout time.Duration

	// EnableKeepAlive 是否启用心跳
	EnableKeepAlive bool

	// MaxPendingPerStream 每个 StreamID 缓存的未认领入站流上限
	MaxPendingPerStream int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxStreams:          256,
		MaxStreamWindowSize: 256 * 1024, // 256 KB
		KeepAliveInterval:   30 * time.Second,
		WriteTimeout:        10 * time.Second,
		EnableKeepAlive:     true,
		MaxPendingPerStream: 16,
	}
}

// toYamux 将 Config 转换为 yamux.Config
func (c Config) toYamux() *yamux.Config {
	cfg := &yamux.Config{
		AcceptBacklog:          256,
		EnableKeepAlive:        true,
		KeepAliveInterval:      30 * time.Second,
		ConnectionWriteTimeout: 10 * time.Second,
		MaxStreamWindowSize:    256 * 1024,
		StreamOpenTimeout:      75 * time.Second,
		StreamCloseTimeout:     5 * time.Minute,
		LogOutput:              io.Discard, // 禁用日志输出
	}

	if c.MaxStreams > 0 {
		cfg.AcceptBacklog = c.MaxStreams
	}
	if c.MaxStreamWindowSize > 0 {
		cfg.MaxStreamWindowSize = c.MaxStreamWindowSize
	}
	if c.KeepAliveInterval > 0 {
		cfg.KeepAliveInterval = c.KeepAliveInterval
	}
	if c.WriteTimeout > 0 {
		cfg.ConnectionWriteTimeout = c.WriteTimeout
	}
	cfg.EnableKeepAlive = c.EnableKeepAlive

	return cfg
}

func (c Config) maxPending() int {
	if c.MaxPendingPerStream > 0 {
		return c.MaxPendingPerStream
	}
	return DefaultConfig().MaxPendingPerStream
}
