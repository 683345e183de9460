package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-p2p-transport/config"
	"github.com/dep2p/go-p2p-transport/internal/core/identity"
	"github.com/dep2p/go-p2p-transport/internal/core/muxer"
	"github.com/dep2p/go-p2p-transport/internal/core/transport/mem"
	"github.com/dep2p/go-p2p-transport/internal/core/transport/quic"
	"github.com/dep2p/go-p2p-transport/internal/core/transport/tcp"
	"github.com/dep2p/go-p2p-transport/internal/core/upgrader"
	transportif "github.com/dep2p/go-p2p-transport/pkg/interfaces/transport"
	"github.com/dep2p/go-p2p-transport/pkg/lib/log"
)

var logger = log.Logger("core/transport")

// Config 传输层配置
type Config struct {
	// Kind 后端类型（config.TransportTCP / TransportQUIC / TransportMem）
	Kind string

	// Upgrader tcp 与 mem 共用的升级配置
	Upgrader upgrader.Config

	// TCP 配置
	TCP tcp.Config

	// QUIC 配置
	QUIC quic.Config
}

// NewConfig 创建默认配置
func NewConfig() Config {
	return Config{
		Kind:     config.TransportTCP,
		Upgrader: upgrader.NewConfig(),
		TCP:      tcp.NewConfig(),
		QUIC:     quic.NewConfig(),
	}
}

// ConfigFromUnified 从统一配置创建传输配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return NewConfig()
	}
	tc := cfg.Transport

	mux := muxer.DefaultConfig()
	mux.MaxStreamWindowSize = tc.Muxer.MaxStreamWindowSize
	mux.KeepAliveInterval = tc.Muxer.KeepAliveInterval.Duration()
	mux.EnableKeepAlive = tc.Muxer.EnableKeepAlive
	mux.MaxPendingPerStream = tc.Muxer.MaxPendingPerStream

	up := upgrader.Config{
		HandshakeTimeout: tc.HandshakeTimeout.Duration(),
		Muxer:            mux,
	}

	return Config{
		Kind:     tc.Kind,
		Upgrader: up,
		TCP: tcp.Config{
			DialTimeout: tc.DialTimeout.Duration(),
			KeepAlive:   tc.TCP.KeepAlivePeriod.Duration(),
			NoDelay:     tc.TCP.NoDelay,
			Upgrader:    up,
		},
		QUIC: quic.Config{
			MaxIdleTimeout:     tc.QUIC.MaxIdleTimeout.Duration(),
			KeepAlivePeriod:    tc.QUIC.KeepAlivePeriod.Duration(),
			MaxIncomingStreams: int64(tc.QUIC.MaxStreams),
			HandshakeTimeout:   tc.HandshakeTimeout.Duration(),
			Muxer:              mux,
		},
	}
}

// defaultNetwork 同一进程内所有 mem 传输共享的网络
var defaultNetwork = sync.OnceValue(mem.NewNetwork)

// New 按 cfg.Kind 创建传输并擦除具体类型
//
// network 仅 mem 后端使用，为 nil 时使用进程级共享网络。
func New(cfg Config, network *mem.Network) (transportif.Dynamic, error) {
	switch cfg.Kind {
	case config.TransportTCP:
		tc := cfg.TCP
		tc.Upgrader = cfg.Upgrader
		return transportif.Erase[*tcp.Conn, *tcp.Endpoint](tcp.NewTransport(tc)), nil

	case config.TransportQUIC:
		t, err := quic.New(cfg.QUIC)
		if err != nil {
			return nil, fmt.Errorf("创建 QUIC 传输失败: %w", err)
		}
		return transportif.Erase[*quic.Conn, *quic.Endpoint](t), nil

	case config.TransportMem:
		if network == nil {
			network = defaultNetwork()
		}
		return transportif.Erase[*mem.Conn, *mem.Endpoint](mem.NewTransport(network, cfg.Upgrader)), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// ============================================================================
//                              Fx 模块
// ============================================================================

// Params 传输模块依赖
type Params struct {
	fx.In

	UnifiedCfg *config.Config     `optional:"true"`
	Identity   *identity.Identity `optional:"true"`
	Network    *mem.Network       `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(
			ProvideConfig,
			ProvideTransport,
		),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideConfig 从统一配置提供传输配置
func ProvideConfig(p Params) Config {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if p.Identity != nil {
		cfg.QUIC.PrivateKey = p.Identity.PrivateKey()
	}
	return cfg
}

// ProvideTransport 创建配置指定的传输
func ProvideTransport(cfg Config, p Params) (transportif.Dynamic, error) {
	t, err := New(cfg, p.Network)
	if err != nil {
		return nil, err
	}
	logger.Info("传输已创建", "kind", cfg.Kind)
	return t, nil
}

// registerLifecycle 注册生命周期钩子
//
// 正常情况下 protocol 的 Stop 已经关闭传输，这里兜底处理未停止的绑定。
func registerLifecycle(lc fx.Lifecycle, t transportif.Dynamic) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			start := time.Now()
			err := t.Shutdown()
			logger.Debug("传输已关闭", "elapsed", time.Since(start), "error", err)
			return err
		},
	})
}
