package app

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-p2p-transport/config"
	transportif "github.com/dep2p/go-p2p-transport/pkg/interfaces/transport"
	"github.com/dep2p/go-p2p-transport/pkg/lib/log"
	"github.com/dep2p/go-p2p-transport/pkg/peer"
	"github.com/dep2p/go-p2p-transport/pkg/protocol"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

var logger = log.Logger("app")

// 节点使用擦除后的传输类型
type (
	conn     = transportif.Connection
	endpoint = transportif.Endpoint[conn]
)

var (
	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("node already started")

	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("node not started")
)

// NodeConfig 节点运行参数
type NodeConfig struct {
	// KnownPeers 启动时拨号的节点地址
	KnownPeers []netip.AddrPort

	// DialTimeout 单次拨号超时
	DialTimeout time.Duration

	// MaxHandlers 同时处理的 Peer 上限，达到上限时接受循环等待
	MaxHandlers int

	// ErrorLogRate 瞬时错误日志的速率上限（条/秒）
	ErrorLogRate rate.Limit

	// ErrorLogBurst 瞬时错误日志的突发上限
	ErrorLogBurst int
}

// DefaultNodeConfig 返回默认节点参数
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		DialTimeout:   30 * time.Second,
		MaxHandlers:   64,
		ErrorLogRate:  1,
		ErrorLogBurst: 5,
	}
}

// NodeConfigFromUnified 从统一配置创建节点参数
func NodeConfigFromUnified(cfg *config.Config) (NodeConfig, error) {
	nc := DefaultNodeConfig()
	if cfg == nil {
		return nc, nil
	}
	nc.DialTimeout = cfg.Transport.DialTimeout.Duration()
	for _, kp := range cfg.KnownPeers {
		addr, err := kp.AddrPort()
		if err != nil {
			return NodeConfig{}, err
		}
		nc.KnownPeers = append(nc.KnownPeers, addr)
	}
	return nc, nil
}

// Node 节点运行时
//
// Node 持有一个协议实例，是其 Running 状态的唯一所有者：
// 单独的接受循环拉取入站 Peer，出站 Peer 由 Connect 产生，
// 二者都交给 Handler 在独立 goroutine 中处理。
type Node struct {
	config  NodeConfig
	info    types.BindInfo
	handler Handler
	limiter *rate.Limiter

	mu         sync.Mutex
	stopped    *protocol.Stopped[conn, endpoint]
	running    *protocol.Running[conn, endpoint]
	ctx        context.Context
	cancel     context.CancelFunc
	handlers   *errgroup.Group
	background *errgroup.Group
	// calls 进行中的 Connect，Stop 在等待 Handler 前先等待它们
	calls *sync.WaitGroup
}

// NewNode 创建节点
//
// handler 为 nil 时，Peer 建立后立即关闭。
func NewNode(t transportif.Dynamic, info types.BindInfo, cfg NodeConfig, handler Handler, opts ...protocol.Option) *Node {
	if handler == nil {
		handler = HandlerFunc(func(context.Context, *peer.Peer[conn]) error { return nil })
	}
	if cfg.MaxHandlers <= 0 {
		cfg.MaxHandlers = DefaultNodeConfig().MaxHandlers
	}
	return &Node{
		config:  cfg,
		info:    info.Clone(),
		handler: handler,
		limiter: rate.NewLimiter(cfg.ErrorLogRate, cfg.ErrorLogBurst),
		stopped: protocol.New(t, opts...),
	}
}

// Start 绑定传输，启动接受循环并拨号已知节点
//
// 绑定失败时节点保持停止状态，可以再次 Start。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running != nil {
		return ErrAlreadyStarted
	}

	running, err := n.stopped.Start(ctx, n.info)
	if err != nil {
		return fmt.Errorf("启动节点失败: %w", err)
	}
	n.stopped = nil
	n.running = running

	hctx, cancel := context.WithCancel(context.Background())
	g := &errgroup.Group{}
	g.SetLimit(n.config.MaxHandlers)
	// 接受循环与拨号不占用 Handler 配额
	bg := &errgroup.Group{}

	n.ctx, n.cancel = hctx, cancel
	n.handlers, n.background = g, bg
	n.calls = &sync.WaitGroup{}

	bg.Go(func() error {
		n.acceptLoop(hctx, running, g)
		return nil
	})
	for _, addr := range n.config.KnownPeers {
		bg.Go(func() error {
			n.dial(hctx, running, g, addr)
			return nil
		})
	}

	logger.Info("节点已启动",
		"listenAddr", running.ListenAddr(),
		"publicKey", n.info.PublicKey.ShortString(),
		"knownPeers", len(n.config.KnownPeers))
	return nil
}

// ListenAddr 返回监听地址，未启动时返回零值
func (n *Node) ListenAddr() netip.AddrPort {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running == nil {
		return netip.AddrPort{}
	}
	return n.running.ListenAddr()
}

// IsRunning 是否处于运行状态
func (n *Node) IsRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running != nil
}

// Connect 主动连接 addr 并交给 Handler 处理
//
// 返回时 Handler 已在后台运行。节点停止时拨号随之取消。
func (n *Node) Connect(ctx context.Context, addr netip.AddrPort) error {
	n.mu.Lock()
	running, g, hctx, calls := n.running, n.handlers, n.ctx, n.calls
	if running == nil {
		n.mu.Unlock()
		return ErrNotStarted
	}
	calls.Add(1)
	n.mu.Unlock()
	defer calls.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(hctx, cancel)()

	p, err := running.Connect(ctx, addr)
	if err != nil {
		return err
	}
	n.dispatch(hctx, g, p)
	return nil
}

// Stop 关闭传输并等待接受循环与全部 Handler 退出
//
// 传输关闭失败时节点仍回到停止状态，错误返回给调用方。
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	running := n.running
	if running == nil {
		n.mu.Unlock()
		return ErrNotStarted
	}
	n.running = nil
	cancel, g, bg, calls := n.cancel, n.handlers, n.background, n.calls
	n.ctx, n.cancel, n.handlers, n.background, n.calls = nil, nil, nil, nil, nil

	stopped, stopErr := running.Stop()
	n.stopped = stopped
	n.mu.Unlock()

	cancel()

	waitDone := make(chan struct{})
	go func() {
		// 接受循环、拨号与 Connect 都可能继续分发，最后等待 Handler
		_ = bg.Wait()
		calls.Wait()
		_ = g.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-ctx.Done():
		return multierr.Append(stopErr, fmt.Errorf("等待 Handler 退出: %w", ctx.Err()))
	}

	logger.Info("节点已停止", "error", stopErr)
	return stopErr
}

// acceptLoop 唯一的接受循环，序列终止后退出
func (n *Node) acceptLoop(ctx context.Context, running *protocol.Running[conn, endpoint], g *errgroup.Group) {
	for {
		p, err := running.Accept()
		if err != nil {
			if errors.Is(err, protocol.ErrAcceptTerminated) || errors.Is(err, protocol.ErrProtocolConsumed) {
				logger.Debug("接受循环退出", "reason", err)
				return
			}
			// 单个入站失败不影响后续连接
			if n.limiter.Allow() {
				logger.Warn("入站连接失败", "error", err)
			}
			continue
		}
		n.dispatch(ctx, g, p)
	}
}

func (n *Node) dial(ctx context.Context, running *protocol.Running[conn, endpoint], g *errgroup.Group, addr netip.AddrPort) {
	dctx, cancel := context.WithTimeout(ctx, n.config.DialTimeout)
	defer cancel()

	p, err := running.Connect(dctx, addr)
	if err != nil {
		if ctx.Err() == nil && n.limiter.Allow() {
			logger.Warn("连接已知节点失败", "addr", addr, "error", err)
		}
		return
	}
	logger.Info("已连接已知节点", "addr", addr, "publicKey", p.Conn().PublicKey().ShortString())
	n.dispatch(ctx, g, p)
}

// dispatch 在 Handler goroutine 中处理 p，退出时释放连接
func (n *Node) dispatch(ctx context.Context, g *errgroup.Group, p *peer.Peer[conn]) {
	g.Go(func() error {
		err := peer.Scoped(p, func(p *peer.Peer[conn]) error {
			return n.handler.HandlePeer(ctx, p)
		})
		if err != nil && ctx.Err() == nil {
			logger.Debug("Handler 返回错误", "peer", p.String(), "error", err)
		}
		return nil
	})
}
