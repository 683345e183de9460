package transport

import (
	"context"
	"net/netip"

	"github.com/dep2p/go-p2p-transport/pkg/types"
)

// Dynamic 以接口类型实例化的传输
//
// 运行时按配置选择后端时，不同后端的具体类型无法统一，
// 通过 Erase 适配为同一个实例化。
type Dynamic = Transport[Connection, Endpoint[Connection]]

// Erase 将具体类型的 Transport 适配为 Dynamic
func Erase[C Connection, E Endpoint[C]](t Transport[C, E]) Dynamic {
	return &erased[C, E]{inner: t}
}

type erased[C Connection, E Endpoint[C]] struct {
	inner Transport[C, E]
}

func (e *erased[C, E]) Bind(ctx context.Context, info types.BindInfo) (Endpoint[Connection], Incoming[Connection], error) {
	ep, incoming, err := e.inner.Bind(ctx, info)
	if err != nil {
		return nil, nil, err
	}
	return &erasedEndpoint[C, E]{inner: ep}, eraseIncoming(incoming), nil
}

func (e *erased[C, E]) Shutdown() error {
	return e.inner.Shutdown()
}

type erasedEndpoint[C Connection, E Endpoint[C]] struct {
	inner E
}

func (e *erasedEndpoint[C, E]) Connect(ctx context.Context, addr netip.AddrPort) (Connection, error) {
	conn, err := e.inner.Connect(ctx, addr)
	if err != nil {
		// 避免把类型化的 nil 指针装进非 nil 接口
		return nil, err
	}
	return conn, nil
}

func (e *erasedEndpoint[C, E]) ListenAddr() netip.AddrPort {
	return e.inner.ListenAddr()
}

func eraseIncoming[C Connection](in Incoming[C]) Incoming[Connection] {
	return func(yield func(Connection, error) bool) {
		for conn, err := range in {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !yield(conn, nil) {
				return
			}
		}
	}
}
