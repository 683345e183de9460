package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/dep2p/go-p2p-transport/internal/core/transport/binding"
	"github.com/dep2p/go-p2p-transport/internal/core/upgrader"
	transportif "github.com/dep2p/go-p2p-transport/pkg/interfaces/transport"
	"github.com/dep2p/go-p2p-transport/pkg/lib/log"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

var logger = log.Logger("core/transport/tcp")

// Conn TCP 上升级后的连接
type Conn = upgrader.Conn

// Config TCP 传输配置
type Config struct {
	// DialTimeout 拨号超时，0 表示只受 ctx 约束
	DialTimeout time.Duration

	// KeepAlive TCP keepalive 周期
	KeepAlive time.Duration

	// NoDelay 禁用 Nagle
	NoDelay bool

	// Upgrader 升级配置
	Upgrader upgrader.Config
}

// NewConfig 创建默认配置
func NewConfig() Config {
	return Config{
		DialTimeout: 30 * time.Second,
		KeepAlive:   15 * time.Second,
		NoDelay:     true,
		Upgrader:    upgrader.NewConfig(),
	}
}

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport TCP 传输层实现
type Transport struct {
	config Config

	mu      sync.Mutex
	current *binding.Binding
}

// 确保实现 transport.Transport 接口
var _ transportif.Transport[*Conn, *Endpoint] = (*Transport)(nil)

// NewTransport 创建 TCP 传输层
func NewTransport(config Config) *Transport {
	return &Transport{config: config}
}

// Bind 监听 info.Addr
//
// 同一时刻只允许一个绑定；Shutdown 之后可以再次 Bind。
func (t *Transport) Bind(ctx context.Context, info types.BindInfo) (*Endpoint, transportif.Incoming[*Conn], error) {
	if err := info.Validate(); err != nil {
		return nil, nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		return nil, nil, ErrAlreadyBound
	}

	lc := net.ListenConfig{KeepAlive: t.config.KeepAlive}
	l, err := lc.Listen(ctx, "tcp", info.Addr.String())
	if err != nil {
		return nil, nil, fmt.Errorf("监听失败: %w", err)
	}

	b := binding.New(tcpKeepAliveListener{l.(*net.TCPListener), t.config}, upgrader.New(info, t.config.Upgrader))
	t.current = b

	logger.Info("TCP 监听已启动", "addr", b.Addr())
	return &Endpoint{transport: t, binding: b}, b.Incoming(), nil
}

// Shutdown 关闭监听器与全部连接
//
// 未绑定时直接返回 nil。
func (t *Transport) Shutdown() error {
	t.mu.Lock()
	b := t.current
	t.current = nil
	t.mu.Unlock()

	if b == nil {
		return nil
	}

	err := b.Close()
	logger.Info("TCP 传输已关闭", "addr", b.Addr(), "error", err)
	return err
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

// IsBound 是否处于绑定状态
func (t *Transport) IsBound() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// ============================================================================
//                              Endpoint 实现
// ============================================================================

// Endpoint 一次绑定对应的拨号设施
type Endpoint struct {
	transport *Transport
	binding   *binding.Binding
}

var _ transportif.Endpoint[*Conn] = (*Endpoint)(nil)

// Connect 拨号并升级
func (e *Endpoint) Connect(ctx context.Context, addr netip.AddrPort) (*Conn, error) {
	if e.binding.IsClosed() {
		return nil, ErrTransportClosed
	}
	if !addr.IsValid() {
		return nil, fmt.Errorf("无效的 TCP 地址: %s", addr)
	}

	dialer := &net.Dialer{
		Timeout:   e.transport.config.DialTimeout,
		KeepAlive: e.transport.config.KeepAlive,
	}
	raw, err := dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}
	setOptions(raw, e.transport.config)

	conn, err := e.binding.Outbound(ctx, raw)
	if err != nil {
		if errors.Is(err, binding.ErrClosed) {
			return nil, ErrTransportClosed
		}
		return nil, err
	}
	return conn, nil
}

// ListenAddr 实际监听地址
func (e *Endpoint) ListenAddr() netip.AddrPort {
	return e.binding.Addr()
}

// ============================================================================
//                              辅助
// ============================================================================

// tcpKeepAliveListener 为入站连接设置 TCP 选项
type tcpKeepAliveListener struct {
	*net.TCPListener
	config Config
}

func (l tcpKeepAliveListener) Accept() (net.Conn, error) {
	c, err := l.TCPListener.AcceptTCP()
	if err != nil {
		return nil, err
	}
	setOptions(c, l.config)
	return c, nil
}

func setOptions(c net.Conn, config Config) {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return
	}
	if config.NoDelay {
		_ = tc.SetNoDelay(true)
	}
	if config.KeepAlive > 0 {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(config.KeepAlive)
	}
}
