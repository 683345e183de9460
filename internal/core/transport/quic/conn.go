package quic

import (
	"context"
	"io"
	"net/netip"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-p2p-transport/internal/core/muxer"
	"github.com/dep2p/go-p2p-transport/internal/core/transport/hello"
	"github.com/dep2p/go-p2p-transport/internal/core/upgrader"
	transportif "github.com/dep2p/go-p2p-transport/pkg/interfaces/transport"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

// 确保实现了接口
var _ transportif.Connection = (*Conn)(nil)

// Conn QUIC 连接
//
// 同一 StreamID 打开两次得到两组独立通道，与对端按打开顺序配对。
type Conn struct {
	id     string
	qc     quic.Connection
	router *muxer.Router[*stream]
	dir    types.Direction
	remote hello.Message

	localAddr  netip.AddrPort
	remoteAddr netip.AddrPort

	mu      sync.Mutex
	onClose []func(*Conn)
	closed  bool

	// closeDone 在首次 Close 完成后关闭，之后 closeErr 只读
	closeDone chan struct{}
	closeErr  error
}

func newConn(qc quic.Connection, dir types.Direction, peerMsg hello.Message, muxCfg muxer.Config) *Conn {
	c := &Conn{
		id:         uuid.NewString(),
		qc:         qc,
		router:     muxer.NewRouter[*stream](&session{conn: qc}, muxCfg),
		dir:        dir,
		remote:     peerMsg,
		localAddr:  upgrader.AddrPort(qc.LocalAddr()),
		remoteAddr: upgrader.AddrPort(qc.RemoteAddr()),
		closeDone:  make(chan struct{}),
	}

	// 连接被对端关闭或空闲超时
	go func() {
		select {
		case <-qc.Context().Done():
		case <-c.router.Done():
		}
		_ = c.Close()
	}()
	return c
}

// ID 连接唯一标识
func (c *Conn) ID() string {
	return c.id
}

// Direction 连接方向
func (c *Conn) Direction() types.Direction {
	return c.dir
}

// AdvertisedAddrs 对端通告的地址
func (c *Conn) AdvertisedAddrs() []netip.AddrPort {
	return slices.Clone(c.remote.AdvertiseAddrs)
}

// LocalAddr 本端地址
func (c *Conn) LocalAddr() netip.AddrPort {
	return c.localAddr
}

// RemoteAddr 对端地址
func (c *Conn) RemoteAddr() netip.AddrPort {
	return c.remoteAddr
}

// PublicKey 对端声明的公钥
func (c *Conn) PublicKey() types.PublicKey {
	return c.remote.PublicKey
}

// OpenBidirectional 打开逻辑流
func (c *Conn) OpenBidirectional(ctx context.Context, id types.StreamID) (io.ReadCloser, io.WriteCloser, error) {
	if c.IsClosed() {
		return nil, nil, ErrConnectionClosed
	}
	return c.router.OpenBidirectional(ctx, id)
}

// OnClose 注册关闭回调，连接已关闭时立即执行
func (c *Conn) OnClose(fn func(*Conn)) {
	c.mu.Lock()
	if !c.closed {
		c.onClose = append(c.onClose, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn(c)
}

// Close 关闭连接，幂等
//
// 并发调用等待首次关闭完成，返回相同结果。
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.closeDone
		return c.closeErr
	}
	c.closed = true
	callbacks := c.onClose
	c.onClose = nil
	c.mu.Unlock()

	// router 关闭时以 CloseWithError 结束 QUIC 连接
	err := c.router.Close()

	for _, fn := range callbacks {
		fn(c)
	}
	logger.Debug("连接已关闭", "id", c.id, "remoteAddr", c.remoteAddr)

	c.closeErr = err
	close(c.closeDone)
	return err
}

// IsClosed 检查是否已关闭
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
