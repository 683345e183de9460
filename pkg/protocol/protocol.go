package protocol

import (
	"context"
	"iter"
	"net/netip"
	"sync"
	"sync/atomic"

	transportif "github.com/dep2p/go-p2p-transport/pkg/interfaces/transport"
	"github.com/dep2p/go-p2p-transport/pkg/lib/log"
	"github.com/dep2p/go-p2p-transport/pkg/peer"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

var logger = log.Logger("core/protocol")

// ============================================================================
//                              Stopped 状态
// ============================================================================

// Stopped 停止状态的协议
//
// 只持有 Transport，唯一可用的操作是 Start。
type Stopped[C transportif.Connection, E transportif.Endpoint[C]] struct {
	mu        sync.Mutex
	transport transportif.Transport[C, E]
	opts      options
	consumed  bool
}

// New 创建停止状态的协议，纯构造，总是成功
func New[C transportif.Connection, E transportif.Endpoint[C]](t transportif.Transport[C, E], opts ...Option) *Stopped[C, E] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Stopped[C, E]{transport: t, opts: o}
}

// Start 绑定传输并转入运行状态
//
// 恰好调用一次 Transport.Bind。成功后本实例被消耗；
// 绑定失败时本实例保持可用，可以用新的参数重试。
func (p *Stopped[C, E]) Start(ctx context.Context, info types.BindInfo) (*Running[C, E], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.consumed {
		return nil, ErrProtocolConsumed
	}

	endpoint, incoming, err := p.transport.Bind(ctx, info.Clone())
	if err != nil {
		logger.Warn("绑定传输失败", "addr", info.Addr, "error", err)
		p.opts.observer.OnStart(err)
		return nil, err
	}
	p.consumed = true

	if incoming == nil {
		incoming = func(func(C, error) bool) {}
	}
	next, stop := iter.Pull2(iter.Seq2[C, error](incoming))

	r := &Running[C, E]{
		transport:  p.transport,
		opts:       p.opts,
		endpoint:   endpoint,
		listenAddr: endpoint.ListenAddr(),
		next:       next,
		stopPull:   stop,
	}

	logger.Info("协议已启动",
		"listenAddr", r.listenAddr,
		"advertiseAddrs", len(info.AdvertiseAddrs),
		"publicKey", info.PublicKey.ShortString())
	p.opts.observer.OnStart(nil)
	return r, nil
}

// ============================================================================
//                              Running 状态
// ============================================================================

// Running 运行状态的协议
//
// 独占持有最近一次成功绑定产生的 Endpoint 与入站序列。
type Running[C transportif.Connection, E transportif.Endpoint[C]] struct {
	transport  transportif.Transport[C, E]
	opts       options
	listenAddr netip.AddrPort

	// mu 保护 endpoint 与 consumed
	mu       sync.RWMutex
	endpoint E
	consumed bool

	// acceptMu 保护入站游标，next 与 stopPull 不可并发调用
	acceptMu       sync.Mutex
	next           func() (C, error, bool)
	stopPull       func()
	terminated     bool
	releasePending atomic.Bool
}

// ListenAddr 返回 Endpoint 绑定的本地地址
func (r *Running[C, E]) ListenAddr() netip.AddrPort {
	return r.listenAddr
}

// Accept 拉取下一个入站连接
//
//   - 序列项为连接：返回入站 Peer
//   - 序列项为错误：原样返回该错误，序列未结束
//   - 序列已结束：返回 ErrAcceptTerminated，之后每次调用都返回它
//
// 阻塞直到后端产生下一项；Stop 会通过关闭监听器结束序列来唤醒它。
func (r *Running[C, E]) Accept() (*peer.Peer[C], error) {
	r.mu.RLock()
	consumed := r.consumed
	r.mu.RUnlock()
	if consumed {
		return nil, ErrProtocolConsumed
	}

	r.acceptMu.Lock()
	defer r.unlockAccept()

	if r.next == nil {
		return nil, ErrProtocolConsumed
	}
	if r.terminated {
		return nil, ErrAcceptTerminated
	}

	conn, err, ok := r.next()
	if !ok {
		r.terminated = true
		logger.Info("入站序列已终止", "listenAddr", r.listenAddr)
		r.opts.observer.OnAccept(ErrAcceptTerminated)
		return nil, ErrAcceptTerminated
	}
	if err != nil {
		logger.Debug("接受连接失败", "error", err)
		r.opts.observer.OnAccept(err)
		return nil, err
	}

	p := peer.From(peer.Incoming(conn))
	logger.Debug("接受入站连接", "remoteAddr", conn.RemoteAddr())
	r.opts.observer.OnAccept(nil)
	return p, nil
}

// Connect 通过 Endpoint 拨号并返回出站 Peer
//
// 只需共享访问，可以并发调用。失败时原样返回 Endpoint 的错误。
func (r *Running[C, E]) Connect(ctx context.Context, addr netip.AddrPort) (*peer.Peer[C], error) {
	r.mu.RLock()
	if r.consumed {
		r.mu.RUnlock()
		return nil, ErrProtocolConsumed
	}
	endpoint := r.endpoint
	r.mu.RUnlock()

	conn, err := endpoint.Connect(ctx, addr)
	r.opts.observer.OnConnect(err)
	if err != nil {
		logger.Debug("拨号失败", "addr", addr, "error", err)
		return nil, err
	}

	logger.Debug("建立出站连接", "remoteAddr", conn.RemoteAddr())
	return peer.From(peer.Outgoing(conn)), nil
}

// Stop 关闭传输并回到停止状态
//
// 恰好调用一次 Transport.Shutdown。无论关闭是否成功，本实例的
// Endpoint 与入站序列都会被丢弃，并返回包装同一 Transport 的新 Stopped；
// 关闭失败时同时返回该错误，调用方可以决定是否重新 Start。
func (r *Running[C, E]) Stop() (*Stopped[C, E], error) {
	r.mu.Lock()
	if r.consumed {
		r.mu.Unlock()
		return nil, ErrProtocolConsumed
	}
	r.consumed = true
	var zero E
	r.endpoint = zero
	r.mu.Unlock()

	err := r.transport.Shutdown()

	// 游标不能与进行中的 Accept 并发释放，交给该 Accept 返回时处理
	r.releasePending.Store(true)
	if r.acceptMu.TryLock() {
		r.releaseIfPending()
		r.acceptMu.Unlock()
	}

	stopped := &Stopped[C, E]{transport: r.transport, opts: r.opts}
	r.opts.observer.OnStop(err)
	if err != nil {
		logger.Warn("关闭传输失败", "listenAddr", r.listenAddr, "error", err)
		return stopped, err
	}

	logger.Info("协议已停止", "listenAddr", r.listenAddr)
	return stopped, nil
}

// unlockAccept 释放 acceptMu，并处理 Accept 期间到达的 Stop
func (r *Running[C, E]) unlockAccept() {
	r.releaseIfPending()
	r.acceptMu.Unlock()

	// Stop 可能在上面的检查之后、解锁之前尝试加锁失败
	if r.releasePending.Load() && r.acceptMu.TryLock() {
		r.releaseIfPending()
		r.acceptMu.Unlock()
	}
}

// releaseIfPending 释放入站游标，调用方须持有 acceptMu
func (r *Running[C, E]) releaseIfPending() {
	if !r.releasePending.Load() || r.stopPull == nil {
		return
	}
	r.stopPull()
	r.stopPull = nil
	r.next = nil
}
