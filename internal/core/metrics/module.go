package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-p2p-transport/config"
	"github.com/dep2p/go-p2p-transport/pkg/protocol"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Output Metrics 输出
type Output struct {
	fx.Out

	Registry *prometheus.Registry
	Observer protocol.Observer
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(ProvideMetrics),
	fx.Invoke(registerLifecycle),
)

// ProvideMetrics 按配置创建指标
//
// 禁用时 Observer 为 nil，protocol.WithObserver 会忽略它。
func ProvideMetrics(p Params) Output {
	cfg := config.DefaultMetricsConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.Metrics
	}

	reg := prometheus.NewRegistry()
	if !cfg.Enabled {
		return Output{Registry: reg}
	}
	return Output{
		Registry: reg,
		Observer: NewProtocolMetrics(reg, cfg.Namespace),
	}
}

func registerLifecycle(lc fx.Lifecycle, p Params, reg *prometheus.Registry) {
	cfg := config.DefaultMetricsConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.Metrics
	}
	if !cfg.Enabled || cfg.ListenAddr == "" {
		return
	}

	srv := NewServer(cfg.ListenAddr, reg)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop(ctx)
		},
	})
}
