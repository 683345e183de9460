package app

import (
	"time"

	"github.com/dep2p/go-p2p-transport/config"
	"github.com/dep2p/go-p2p-transport/internal/core/transport/mem"
)

// BootstrapOption Bootstrap 配置选项
type BootstrapOption func(*Bootstrap)

// WithConfig 设置配置
func WithConfig(cfg *config.Config) BootstrapOption {
	return func(b *Bootstrap) {
		b.config = cfg
	}
}

// WithNetwork 设置 mem 后端使用的进程内网络
func WithNetwork(n *mem.Network) BootstrapOption {
	return func(b *Bootstrap) {
		b.network = n
	}
}

// WithHandler 替换默认的 PexHandler
func WithHandler(h Handler) BootstrapOption {
	return func(b *Bootstrap) {
		b.handler = h
	}
}

// WithBuildOptions 设置构建选项
func WithBuildOptions(opts BuildOptions) BootstrapOption {
	return func(b *Bootstrap) {
		b.build = opts
	}
}

// BuildOptions 构建选项
type BuildOptions struct {
	// StartTimeout 启动超时
	StartTimeout time.Duration

	// StopTimeout 停止超时
	StopTimeout time.Duration

	// FxEvents 输出 fx 依赖注入事件（调试用）
	FxEvents bool
}

// DefaultBuildOptions 默认构建选项
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		StartTimeout: 30 * time.Second,
		StopTimeout:  30 * time.Second,
	}
}
