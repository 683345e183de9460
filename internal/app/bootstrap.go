// Package app 提供节点应用编排层
//
// app 包负责：
//   - 节点运行时（Node）：单一接受循环、已知节点拨号、Handler 分发
//   - 地址交换（PexHandler）
//   - fx 模块组装与生命周期管理（Bootstrap）
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-p2p-transport/config"
	"github.com/dep2p/go-p2p-transport/internal/core/identity"
	"github.com/dep2p/go-p2p-transport/internal/core/metrics"
	"github.com/dep2p/go-p2p-transport/internal/core/transport"
	"github.com/dep2p/go-p2p-transport/internal/core/transport/mem"
)

// Bootstrap 应用引导程序
//
// Bootstrap 负责：
//   - 校验配置
//   - 组装 fx 模块
//   - 管理应用生命周期
type Bootstrap struct {
	config  *config.Config
	network *mem.Network
	handler Handler
	build   BuildOptions

	fxApp *fx.App
}

// NewBootstrap 创建引导程序
func NewBootstrap(opts ...BootstrapOption) *Bootstrap {
	b := &Bootstrap{
		config: config.NewConfig(),
		build:  DefaultBuildOptions(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start 构建并启动节点
//
// 返回的 Runtime.Stop 触发 fx OnStop，按逆序关闭各模块。
func (b *Bootstrap) Start(ctx context.Context) (*Runtime, error) {
	if b.fxApp != nil {
		return nil, errors.New("bootstrap already started")
	}
	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	rt := &Runtime{}
	b.fxApp = fx.New(
		b.setupModules(),
		fx.WithLogger(b.fxLogger),
		fx.Populate(&rt.Node, &rt.Identity, &rt.Registry),
	)
	if err := b.fxApp.Err(); err != nil {
		b.fxApp = nil
		return nil, fmt.Errorf("组装模块失败: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, b.build.StartTimeout)
	defer cancel()

	if err := b.fxApp.Start(startCtx); err != nil {
		b.fxApp = nil
		return nil, fmt.Errorf("启动应用失败: %w", err)
	}

	rt.stop = b.Stop
	return rt, nil
}

// Stop 停止应用
func (b *Bootstrap) Stop(ctx context.Context) error {
	if b.fxApp == nil {
		return nil
	}
	app := b.fxApp
	b.fxApp = nil

	stopCtx, cancel := context.WithTimeout(ctx, b.build.StopTimeout)
	defer cancel()

	return app.Stop(stopCtx)
}

// setupModules 组装所有 fx 模块
//
// 顺序：配置 → 身份 → 指标 → 传输 → 节点。
// fx 按依赖启动，逆序停止，节点总是先于传输关闭。
func (b *Bootstrap) setupModules() fx.Option {
	opts := []fx.Option{
		fx.Supply(b.config),
		identity.Module(),
		metrics.Module,
		transport.Module(),
		Module(),
	}
	if b.network != nil {
		opts = append(opts, fx.Supply(b.network))
	}
	if b.handler != nil {
		h := b.handler
		opts = append(opts, fx.Provide(func() Handler { return h }))
	}
	return fx.Options(opts...)
}

// fxLogger 默认丢弃 fx 事件，避免干扰节点日志
func (b *Bootstrap) fxLogger() fxevent.Logger {
	if !b.build.FxEvents {
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	}
	return &fxevent.ZapLogger{Logger: l.Named("fx")}
}

// Runtime 一个已启动的节点运行时
type Runtime struct {
	Node     *Node
	Identity *identity.Identity
	Registry *prometheus.Registry

	stop func(ctx context.Context) error
}

// Stop 停止运行时（触发 fx 生命周期 OnStop）
func (r *Runtime) Stop(ctx context.Context) error {
	if r.stop == nil {
		return nil
	}
	return r.stop(ctx)
}
