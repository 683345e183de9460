// Package binding 管理字节流后端一次绑定期间的监听与连接
//
// TCP 与内存传输在 Bind 时各自创建一个 Binding：
//   - 后台循环接受原始连接，并发执行升级，结果进入入站序列
//   - 出站连接也经由同一个 Binding 升级并登记
//   - Close 关闭监听器与全部登记的连接，入站序列随之结束
package binding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-p2p-transport/internal/core/upgrader"
	transportif "github.com/dep2p/go-p2p-transport/pkg/interfaces/transport"
	"github.com/dep2p/go-p2p-transport/pkg/lib/log"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

var logger = log.Logger("core/transport/binding")

// ErrClosed 绑定已关闭
var ErrClosed = errors.New("binding closed")

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Binding 一次绑定的运行状态
type Binding struct {
	listener net.Listener
	upgrader *upgrader.Upgrader
	addr     netip.AddrPort

	reg *Registry[*upgrader.Conn]
	wg  sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// New 创建 Binding 并启动接受循环
func New(l net.Listener, u *upgrader.Upgrader) *Binding {
	b := &Binding{
		listener: l,
		upgrader: u,
		addr:     upgrader.AddrPort(l.Addr()),
		reg:      NewRegistry[*upgrader.Conn](),
	}

	b.wg.Add(1)
	go b.acceptLoop()
	return b
}

// Addr 实际监听地址
func (b *Binding) Addr() netip.AddrPort {
	return b.addr
}

// Incoming 入站序列
//
// 监听器关闭或 Binding 关闭后结束。升级失败作为单项错误产出。
func (b *Binding) Incoming() transportif.Incoming[*upgrader.Conn] {
	return b.reg.Incoming()
}

// Outbound 升级出站原始连接并登记
func (b *Binding) Outbound(ctx context.Context, raw net.Conn) (*upgrader.Conn, error) {
	if b.IsClosed() {
		_ = raw.Close()
		return nil, ErrClosed
	}

	c, err := b.upgrader.Upgrade(ctx, raw, types.DirOutbound,
		upgrader.AddrPort(raw.LocalAddr()), upgrader.AddrPort(raw.RemoteAddr()))
	if err != nil {
		return nil, err
	}
	if !b.reg.Track(c) {
		_ = c.Close()
		return nil, ErrClosed
	}
	return c, nil
}

// NumConns 登记中的连接数
func (b *Binding) NumConns() int {
	return b.reg.Len()
}

// IsClosed 检查是否已关闭
func (b *Binding) IsClosed() bool {
	return b.reg.IsClosed()
}

// Close 关闭监听器与全部连接，等待后台任务退出
func (b *Binding) Close() error {
	b.closeOnce.Do(func() {
		// 先结束入站序列，接受循环据此区分主动关闭
		b.reg.End()

		var err error
		if lerr := b.listener.Close(); lerr != nil && !errors.Is(lerr, net.ErrClosed) {
			err = multierr.Append(err, fmt.Errorf("关闭监听器失败: %w", lerr))
		}
		n, cerr := b.reg.Close()
		err = multierr.Append(err, cerr)

		b.wg.Wait()
		b.closeErr = err
		logger.Debug("绑定已关闭", "addr", b.addr, "conns", n)
	})
	return b.closeErr
}

func (b *Binding) acceptLoop() {
	defer b.wg.Done()

	var backoff time.Duration
	for {
		raw, err := b.listener.Accept()
		if err != nil {
			if b.reg.Context().Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Debug("接受循环结束", "addr", b.addr)
				b.reg.End()
				return
			}

			// 临时错误（如文件描述符耗尽）退避后重试
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(backoff*2, maxAcceptBackoff)
			}
			logger.Warn("接受连接失败", "addr", b.addr, "error", err, "backoff", backoff)
			if !b.reg.Fail(err) {
				return
			}
			select {
			case <-time.After(backoff):
			case <-b.reg.Context().Done():
				return
			}
			continue
		}
		backoff = 0

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.inbound(raw)
		}()
	}
}

// inbound 升级入站连接并交给入站序列
func (b *Binding) inbound(raw net.Conn) {
	c, err := b.upgrader.Upgrade(b.reg.Context(), raw, types.DirInbound,
		upgrader.AddrPort(raw.LocalAddr()), upgrader.AddrPort(raw.RemoteAddr()))
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
