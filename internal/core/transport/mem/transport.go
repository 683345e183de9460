package mem

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"github.com/dep2p/go-p2p-transport/internal/core/transport/binding"
	"github.com/dep2p/go-p2p-transport/internal/core/upgrader"
	transportif "github.com/dep2p/go-p2p-transport/pkg/interfaces/transport"
	"github.com/dep2p/go-p2p-transport/pkg/lib/log"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

var logger = log.Logger("core/transport/mem")

// Conn 内存链路上升级后的连接
type Conn = upgrader.Conn

// Transport 进程内传输
type Transport struct {
	network *Network
	config  upgrader.Config

	mu      sync.Mutex
	current *binding.Binding
}

var _ transportif.Transport[*Conn, *Endpoint] = (*Transport)(nil)

// NewTransport 创建挂在 network 上的传输
func NewTransport(network *Network, config upgrader.Config) *Transport {
	return &Transport{network: network, config: config}
}

// Bind 在进程内网络上监听
func (t *Transport) Bind(_ context.Context, info types.BindInfo) (*Endpoint, transportif.Incoming[*Conn], error) {
	if err := info.Validate(); err != nil {
		return nil, nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		return nil, nil, ErrAlreadyBound
	}

	l, err := t.network.Listen(info.Addr)
	if err != nil {
		return nil, nil, err
	}

	b := binding.New(l, upgrader.New(info, t.config))
	t.current = b

	logger.Debug("内存监听已启动", "addr", b.Addr())
	return &Endpoint{transport: t, binding: b}, b.Incoming(), nil
}

// Shutdown 关闭监听与全部连接
func (t *Transport) Shutdown() error {
	t.mu.Lock()
	b := t.current
	t.current = nil
	t.mu.Unlock()

	if b == nil {
		return nil
	}
	return b.Close()
}

// ConnCount 返回当前绑定的连接数量
func (t *Transport) ConnCount() int {
	t.mu.Lock()
	b := t.current
	t.mu.Unlock()

	if b == nil {
		return 0
	}
	return b.NumConns()
}

// Endpoint 一次绑定对应的拨号设施
type Endpoint struct {
	transport *Transport
	binding   *binding.Binding
}

var _ transportif.Endpoint[*Conn] = (*Endpoint)(nil)

// Connect 在进程内网络上拨号并升级
func (e *Endpoint) Connect(ctx context.Context, addr netip.AddrPort) (*Conn, error) {
	if e.binding.IsClosed() {
		return nil, ErrTransportClosed
	}

	raw, err := e.transport.network.Dial(ctx, e.binding.Addr().Addr(), addr)
	if err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}

	conn, err := e.binding.Outbound(ctx, raw)
	if errors.Is(err, binding.ErrClosed) {
		return nil, ErrTransportClosed
	}
	return conn, err
}

// ListenAddr 实际监听地址
func (e *Endpoint) ListenAddr() netip.AddrPort {
	return e.binding.Addr()
}
