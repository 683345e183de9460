package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-p2p-transport/config"
	"github.com/dep2p/go-p2p-transport/internal/core/identity"
	transportif "github.com/dep2p/go-p2p-transport/pkg/interfaces/transport"
	"github.com/dep2p/go-p2p-transport/pkg/protocol"
)

// NodeParams 节点依赖
type NodeParams struct {
	fx.In

	Config    *config.Config
	Identity  *identity.Identity
	Transport transportif.Dynamic
	Observer  protocol.Observer `optional:"true"`
	Handler   Handler           `optional:"true"`
	Book      *AddrBook         `optional:"true"`
}

// Module 节点模块
//
// 未注入 Handler 时使用 PexHandler。
func Module() fx.Option {
	return fx.Module("node",
		fx.Provide(ProvideNode),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideNode 按配置创建节点
func ProvideNode(p NodeParams) (*Node, error) {
	info, err := p.Config.ToBindInfo(p.Identity.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("绑定参数无效: %w", err)
	}
	nc, err := NodeConfigFromUnified(p.Config)
	if err != nil {
		return nil, err
	}

	handler := p.Handler
	if handler == nil {
		handler = NewPexHandler(info.AdvertiseAddrs, p.Book)
	}

	return NewNode(p.Transport, info, nc, handler, protocol.WithObserver(p.Observer)), nil
}

func registerLifecycle(lc fx.Lifecycle, n *Node) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return n.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return n.Stop(ctx)
		},
	})
}
