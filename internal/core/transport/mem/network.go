package mem

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
)

const (
	firstPort      = 10000
	defaultBacklog = 16
)

// Network 进程内网络
//
// 零值不可用，使用 NewNetwork 创建。
type Network struct {
	mu        sync.Mutex
	listeners map[netip.AddrPort]*listener
	nextPort  uint16
	backlog   int
}

// NewNetwork 创建进程内网络
func NewNetwork() *Network {
	return &Network{
		listeners: make(map[netip.AddrPort]*listener),
		nextPort:  firstPort,
		backlog:   defaultBacklog,
	}
}

// Listen 在 addr 上监听，端口为 0 时自动分配
func (n *Network) Listen(addr netip.AddrPort) (net.Listener, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if addr.Port() == 0 {
		addr = netip.AddrPortFrom(addr.Addr(), n.allocPortLocked(addr.Addr()))
	}
	if _, ok := n.listeners[addr]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAddrInUse, addr)
	}

	l := &listener{
		network: n,
		addr:    addr,
		connCh:  make(chan net.Conn, n.backlog),
		closeCh: make(chan struct{}),
	}
	n.listeners[addr] = l
	return l, nil
}

// Dial 从 from 所在主机连接 to
func (n *Network) Dial(ctx context.Context, from netip.Addr, to netip.AddrPort) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	l := n.lookupLocked(to)
	local := netip.AddrPortFrom(from, n.allocPortLocked(from))
	n.mu.Unlock()

	if l == nil {
		return nil, fmt.Errorf("%w: %s", ErrConnectionRefused, to)
	}

	c1, c2 := net.Pipe()
	client := &pipeConn{Conn: c1, local: local, remote: l.addr}
	server := &pipeConn{Conn: c2, local: l.addr, remote: local}

	if err := l.enqueue(server); err != nil {
		_ = client.Close()
		_ = server.Close()
		return nil, fmt.Errorf("%w: %s", err, to)
	}
	return client, nil
}

// NumListeners 当前监听数量
func (n *Network) NumListeners() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

// lookupLocked 查找监听，未指定地址的监听匹配任意同端口目标
func (n *Network) lookupLocked(to netip.AddrPort) *listener {
	if l, ok := n.listeners[to]; ok {
		return l
	}
	for addr, l := range n.listeners {
		if addr.Port() == to.Port() && addr.Addr().IsUnspecified() {
			return l
		}
	}
	return nil
}

func (n *Network) allocPortLocked(ip netip.Addr) uint16 {
	for {
		port := n.nextPort
		n.nextPort++
		if n.nextPort == 0 {
			n.nextPort = firstPort
		}
		if _, used := n.listeners[netip.AddrPortFrom(ip, port)]; !used {
			return port
		}
	}
}

func (n *Network) remove(l *listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners[l.addr] == l {
		delete(n.listeners, l.addr)
	}
}

// ============================================================================
//                              listener
// ============================================================================

type listener struct {
	network *Network
	addr    netip.AddrPort
	connCh  chan net.Conn
	closeCh chan struct{}

	mu     sync.Mutex
	closed bool
}

// enqueue 放入待接受队列
func (l *listener) enqueue(c net.Conn) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrConnectionRefused
	}
	select {
	case l.connCh <- c:
		return nil
	default:
		return ErrBacklogFull
	}
}

func (l *listener) Accept() (net.Conn, error) {
	select {
	case c := <-l.connCh:
		return c, nil
	case <-l.closeCh:
		return nil, net.ErrClosed
	}
}

func (l *listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.closeCh)
	l.mu.Unlock()

	l.network.remove(l)

	// 排空未被接受的连接
	for {
		select {
		case c := <-l.connCh:
			_ = c.Close()
		default:
			return nil
		}
	}
}

func (l *listener) Addr() net.Addr {
	return memAddr(l.addr)
}

// ============================================================================
//                              pipeConn
// ============================================================================

// pipeConn 带地址的 net.Pipe 端点
type pipeConn struct {
	net.Conn
	local  netip.AddrPort
	remote netip.AddrPort
}

func (c *pipeConn) LocalAddr() net.Addr  { return memAddr(c.local) }
func (c *pipeConn) RemoteAddr() net.Addr { return memAddr(c.remote) }

type memAddr netip.AddrPort

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return netip.AddrPort(a).String() }
