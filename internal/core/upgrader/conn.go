package upgrader

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/yamux"
	"go.uber.org/multierr"

	"github.com/dep2p/go-p2p-transport/internal/core/muxer"
	"github.com/dep2p/go-p2p-transport/internal/core/transport/hello"
	transportif "github.com/dep2p/go-p2p-transport/pkg/interfaces/transport"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

// 确保实现了接口
var _ transportif.Connection = (*Conn)(nil)

// Conn 升级后的连接
//
// 同一 StreamID 打开两次得到两组独立通道，与对端按打开顺序配对。
type Conn struct {
	id     string
	raw    net.Conn
	router *muxer.Router[*yamux.Stream]
	dir    types.Direction

	localAddr  netip.AddrPort
	remoteAddr netip.AddrPort
	remote     hello.Message

	mu      sync.Mutex
	onClose []func(*Conn)
	closed  bool

	// closeDone 在首次 Close 完成后关闭，之后 closeErr 只读
	closeDone chan struct{}
	closeErr  error
}

func newConn(
	raw net.Conn,
	router *muxer.Router[*yamux.Stream],
	dir types.Direction,
	local, remote netip.AddrPort,
	peerMsg hello.Message,
) *Conn {
	c := &Conn{
		id:         uuid.NewString(),
		raw:        raw,
		router:     router,
		dir:        dir,
		localAddr:  local,
		remoteAddr: remote,
		remote:     peerMsg,
		closeDone:  make(chan struct{}),
	}

	// 会话结束（对端关闭、心跳超时）时释放本端资源
	go func() {
		<-router.Done()
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
		return nil, nil, ErrConnClosed
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

	err := multierr.Append(c.router.Close(), ignoreClosed(c.raw.Close()))

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

// ignoreClosed yamux 关闭会话时已关闭底层连接
func ignoreClosed(err error) error {
	if err == nil || isClosedErr(err) {
		return nil
	}
	return err
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
