package quic

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"go.uber.org/multierr"

	"github.com/dep2p/go-p2p-transport/internal/core/muxer"
	"github.com/dep2p/go-p2p-transport/internal/core/transport/binding"
	"github.com/dep2p/go-p2p-transport/internal/core/transport/hello"
	transportif "github.com/dep2p/go-p2p-transport/pkg/interfaces/transport"
	"github.com/dep2p/go-p2p-transport/pkg/lib/log"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

var logger = log.Logger("core/transport/quic")

// Config QUIC 传输配置
type Config struct {
	// PrivateKey 用于自签名 TLS 证书，为空时使用临时密钥
	PrivateKey ed25519.PrivateKey

	// MaxIdleTimeout 连接空闲超时
	MaxIdleTimeout time.Duration

	// KeepAlivePeriod 保活间隔
	KeepAlivePeriod time.Duration

	// MaxIncomingStreams 对端可同时打开的流数量
	MaxIncomingStreams int64

	// HandshakeTimeout 握手（TLS + hello）超时
	HandshakeTimeout time.Duration

	// Muxer 流路由配置
	Muxer muxer.Config
}

// NewConfig 创建默认配置
func NewConfig() Config {
	return Config{
		// 快速断开检测：KeepAlivePeriod(3s) + MaxIdleTimeout(6s) ≈ 9s
		MaxIdleTimeout:     6 * time.Second,
		KeepAlivePeriod:    3 * time.Second,
		MaxIncomingStreams: 1024,
		HandshakeTimeout:   10 * time.Second,
		Muxer:              muxer.DefaultConfig(),
	}
}

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport QUIC 传输
type Transport struct {
	config        Config
	serverTLSConf *tls.Config
	clientTLSConf *tls.Config
	quicConfig    *quic.Config

	mu      sync.Mutex
	current *bindState
}

var _ transportif.Transport[*Conn, *Endpoint] = (*Transport)(nil)

// New 创建 QUIC 传输
func New(config Config) (*Transport, error) {
	serverTLS, clientTLS, err := NewTLSConfig(config.PrivateKey)
	if err != nil {
		return nil, err
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = NewConfig().HandshakeTimeout
	}

	return &Transport{
		config:        config,
		serverTLSConf: serverTLS,
		clientTLSConf: clientTLS,
		quicConfig: &quic.Config{
			MaxIdleTimeout:       config.MaxIdleTimeout,
			KeepAlivePeriod:      config.KeepAlivePeriod,
			MaxIncomingStreams:   config.MaxIncomingStreams,
			HandshakeIdleTimeout: config.HandshakeTimeout,
		},
	}, nil
}

// Bind 在 info.Addr 上打开共享 UDP socket 并监听
func (t *Transport) Bind(_ context.Context, info types.BindInfo) (*Endpoint, transportif.Incoming[*Conn], error) {
	if err := info.Validate(); err != nil {
		return nil, nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		return nil, nil, ErrAlreadyBound
	}

	udpConn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(info.Addr))
	if err != nil {
		return nil, nil, fmt.Errorf("listen udp: %w", err)
	}

	// 监听与拨号共用同一个 quic.Transport
	qt := &quic.Transport{Conn: udpConn}
	ln, err := qt.Listen(t.serverTLSConf, t.quicConfig)
	if err != nil {
		_ = qt.Close()
		_ = udpConn.Close()
		return nil, nil, fmt.Errorf("listen: %w", err)
	}

	b := &bindState{
		transport: t,
		udpConn:   udpConn,
		qt:        qt,
		listener:  ln,
		addr:      addrPortOf(udpConn.LocalAddr()),
		local: hello.Message{
			PublicKey:      info.PublicKey,
			AdvertiseAddrs: slices.Clone(info.AdvertiseAddrs),
		},
		reg: binding.NewRegistry[*Conn](),
	}
	b.wg.Add(1)
	go b.acceptLoop()

	t.current = b
	logger.Info("QUIC 监听已启动", "addr", b.addr)
	return &Endpoint{binding: b}, b.reg.Incoming(), nil
}

// Shutdown 关闭监听器、全部连接与 UDP socket
func (t *Transport) Shutdown() error {
	t.mu.Lock()
	b := t.current
	t.current = nil
	t.mu.Unlock()

	if b == nil {
		return nil
	}
	err := b.close()
	logger.Info("QUIC 传输已关闭", "addr", b.addr, "error", err)
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
	return b.reg.Len()
}

// ============================================================================
//                              Endpoint 实现
// ============================================================================

// Endpoint 一次绑定对应的拨号设施
type Endpoint struct {
	binding *bindState
}

var _ transportif.Endpoint[*Conn] = (*Endpoint)(nil)

// Connect 使用共享 quic.Transport 拨号，源端口与监听端口一致
func (e *Endpoint) Connect(ctx context.Context, addr netip.AddrPort) (*Conn, error) {
	b := e.binding
	if b.reg.IsClosed() {
		return nil, ErrTransportClosed
	}
	if !addr.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}

	t := b.transport
	qc, err := b.qt.Dial(ctx, net.UDPAddrFromAddrPort(addr), t.clientTLSConf, t.quicConfig)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	c, err := b.upgrade(ctx, qc, types.DirOutbound)
	if err != nil {
		return nil, err
	}
	if !b.reg.Track(c) {
		_ = c.Close()
		return nil, ErrTransportClosed
	}
	return c, nil
}

// ListenAddr 实际监听地址
func (e *Endpoint) ListenAddr() netip.AddrPort {
	return e.binding.addr
}

// ============================================================================
//                              bindState
// ============================================================================

// bindState 一次绑定的运行状态
//
// 连接登记与入站序列由 binding.Registry 管理；监听与拨号共用
// quic.Transport，不经过 net.Listener，因此不使用 binding.Binding。
type bindState struct {
	transport *Transport
	udpConn   *net.UDPConn
	qt        *quic.Transport
	listener  *quic.Listener
	addr      netip.AddrPort
	local     hello.Message

	reg *binding.Registry[*Conn]
	wg  sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func (b *bindState) acceptLoop() {
	defer b.wg.Done()

	for {
		qc, err := b.listener.Accept(b.reg.Context())
		if err != nil {
			if b.reg.Context().Err() == nil && !errors.Is(err, quic.ErrServerClosed) {
				logger.Warn("接受连接失败", "addr", b.addr, "error", err)
			}
			// 监听器已不可用，入站序列结束
			b.reg.End()
			return
		}

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.inbound(qc)
		}()
	}
}

func (b *bindState) inbound(qc quic.Connection) {
	c, err := b.upgrade(b.reg.Context(), qc, types.DirInbound)
	if err != nil {
		b.reg.Fail(err)
		return
	}
	if !b.reg.Track(c) {
		_ = c.Close()
		return
	}
	b.reg.Deliver(c)
}

// upgrade 在第一条流上完成 hello 交换，失败时关闭 qc
func (b *bindState) upgrade(ctx context.Context, qc quic.Connection, dir types.Direction) (*Conn, error) {
	hctx, cancel := context.WithTimeout(ctx, b.transport.config.HandshakeTimeout)
	defer cancel()

	var (
		st  quic.Stream
		err error
	)
	if dir == types.DirOutbound {
		st, err = qc.OpenStreamSync(hctx)
	} else {
		st, err = qc.AcceptStream(hctx)
	}
	if err != nil {
		_ = qc.CloseWithError(1, "hello stream")
		return nil, fmt.Errorf("打开 hello 流失败: %w", err)
	}

	peerMsg, err := hello.Exchange(hctx, st, b.local)
	if err != nil {
		_ = qc.CloseWithError(1, "hello")
		return nil, err
	}
	_ = st.Close()
	st.CancelRead(0)

	c := newConn(qc, dir, peerMsg, b.transport.config.Muxer)
	logger.Info("QUIC 连接已建立",
		"id", c.ID(),
		"direction", dir.String(),
		"remoteAddr", c.RemoteAddr(),
		"remotePeer", peerMsg.PublicKey.ShortString())
	return c, nil
}

func (b *bindState) close() error {
	b.closeOnce.Do(func() {
		b.reg.End()

		var err error
		if lerr := b.listener.Close(); lerr != nil && !errors.Is(lerr, quic.ErrServerClosed) {
			err = multierr.Append(err, fmt.Errorf("关闭监听器失败: %w", lerr))
		}
		_, cerr := b.reg.Close()
		err = multierr.Append(err, cerr)
		b.wg.Wait()

		err = multierr.Append(err, ignoreClosed(b.qt.Close()))
		err = multierr.Append(err, ignoreClosed(b.udpConn.Close()))
		b.closeErr = err
	})
	return b.closeErr
}

func ignoreClosed(err error) error {
	if err == nil || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func addrPortOf(a net.Addr) netip.AddrPort {
	if ua, ok := a.(*net.UDPAddr); ok {
		ap := ua.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return netip.AddrPort{}
}
