package app

import (
	"context"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2p-transport/config"
	"github.com/dep2p/go-p2p-transport/internal/core/transport"
	"github.com/dep2p/go-p2p-transport/internal/core/transport/mem"
	"github.com/dep2p/go-p2p-transport/internal/core/upgrader"
	"github.com/dep2p/go-p2p-transport/pkg/peer"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

func newMemNode(t *testing.T, network *mem.Network, key, listen string, handler Handler) *Node {
	t.Helper()

	cfg := transport.NewConfig()
	cfg.Kind = config.TransportMem
	tr, err := transport.New(cfg, network)
	require.NoError(t, err)

	return NewNode(tr, types.BindInfo{
		Addr:      netip.MustParseAddrPort(listen),
		PublicKey: types.PublicKey(key),
	}, DefaultNodeConfig(), handler)
}

func TestDefaultNodeConfig(t *testing.T) {
	nc := DefaultNodeConfig()
	assert.Equal(t, 30*time.Second, nc.DialTimeout)
	assert.Equal(t, 64, nc.MaxHandlers)
	assert.Empty(t, nc.KnownPeers)
}

func TestNodeConfigFromUnified(t *testing.T) {
	t.Run("Nil", func(t *testing.T) {
		nc, err := NodeConfigFromUnified(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultNodeConfig(), nc)
	})

	t.Run("KnownPeers", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Transport.DialTimeout = config.Duration(5 * time.Second)
		cfg.KnownPeers = []config.KnownPeer{{Addr: "192.0.2.1:4001"}}

		nc, err := NodeConfigFromUnified(cfg)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, nc.DialTimeout)
		assert.Equal(t, []netip.AddrPort{netip.MustParseAddrPort("192.0.2.1:4001")}, nc.KnownPeers)
	})

	t.Run("InvalidPeer", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.KnownPeers = []config.KnownPeer{{Addr: "192.0.2.1"}}

		_, err := NodeConfigFromUnified(cfg)
		assert.Error(t, err)
	})
}

func TestNode_Lifecycle(t *testing.T) {
	ctx := context.Background()
	n := newMemNode(t, mem.NewNetwork(), "node", "10.4.0.1:4001", nil)

	assert.False(t, n.IsRunning())
	assert.ErrorIs(t, n.Stop(ctx), ErrNotStarted)
	assert.ErrorIs(t, n.Connect(ctx, netip.MustParseAddrPort("10.4.0.2:4001")), ErrNotStarted)
	assert.False(t, n.ListenAddr().IsValid())

	require.NoError(t, n.Start(ctx))
	assert.True(t, n.IsRunning())
	assert.Equal(t, netip.MustParseAddrPort("10.4.0.1:4001"), n.ListenAddr())
	assert.ErrorIs(t, n.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, n.Stop(ctx))
	assert.False(t, n.IsRunning())

	// 停止后同一地址可以再次绑定
	require.NoError(t, n.Start(ctx))
	assert.Equal(t, netip.MustParseAddrPort("10.4.0.1:4001"), n.ListenAddr())
	require.NoError(t, n.Stop(ctx))

	t.Log("✅ 节点生命周期测试通过")
}

func TestNode_BindFailureKeepsStopped(t *testing.T) {
	ctx := context.Background()
	network := mem.NewNetwork()

	l, err := network.Listen(netip.MustParseAddrPort("10.5.0.1:4001"))
	require.NoError(t, err)

	n := newMemNode(t, network, "node", "10.5.0.1:4001", nil)
	err = n.Start(ctx)
	require.ErrorIs(t, err, mem.ErrAddrInUse)
	assert.False(t, n.IsRunning())

	// 地址释放后同一节点可以启动
	require.NoError(t, l.Close())
	require.NoError(t, n.Start(ctx))
	require.NoError(t, n.Stop(ctx))
}

func TestNode_HandlerReleasesConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	network := mem.NewNetwork()

	inbound := make(chan *upgrader.Conn, 1)
	server := newMemNode(t, network, "server", "10.6.0.1:4001", HandlerFunc(func(_ context.Context, p *peer.Peer[conn]) error {
		inbound <- p.Conn().(*upgrader.Conn)
		return nil
	}))
	require.NoError(t, server.Start(ctx))
	defer func() { _ = server.Stop(context.Background()) }()

	var outbound atomic.Int32
	client := newMemNode(t, network, "client", "10.6.0.2:0", HandlerFunc(func(_ context.Context, p *peer.Peer[conn]) error {
		outbound.Add(1)
		// 保留连接，由调用方负责关闭
		c := peer.Release(p)
		return c.Close()
	}))
	require.NoError(t, client.Start(ctx))
	defer func() { _ = client.Stop(context.Background()) }()

	require.NoError(t, client.Connect(ctx, server.ListenAddr()))

	select {
	case c := <-inbound:
		assert.Equal(t, types.PublicKey("client"), c.PublicKey())
		// Handler 返回后连接被关闭
		assert.Eventually(t, c.IsClosed, 5*time.Second, 10*time.Millisecond)
	case <-ctx.Done():
		t.Fatal("等待入站 Peer 超时")
	}
	assert.Eventually(t, func() bool { return outbound.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
}

// 单个入站握手失败不会终止接受循环
func TestNode_TransientAcceptError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	network := mem.NewNetwork()

	accepted := make(chan types.PublicKey, 1)
	server := newMemNode(t, network, "server", "10.7.0.1:4001", HandlerFunc(func(_ context.Context, p *peer.Peer[conn]) error {
		accepted <- p.Conn().PublicKey()
		return nil
	}))
	require.NoError(t, server.Start(ctx))
	defer func() { _ = server.Stop(context.Background()) }()

	raw, err := network.Dial(ctx, netip.MustParseAddr("10.7.0.9"), server.ListenAddr())
	require.NoError(t, err)
	// 握手前关闭
	require.NoError(t, raw.Close())

	client := newMemNode(t, network, "client", "10.7.0.2:0", nil)
	require.NoError(t, client.Start(ctx))
	defer func() { _ = client.Stop(context.Background()) }()

	require.NoError(t, client.Connect(ctx, server.ListenAddr()))

	select {
	case key := <-accepted:
		assert.Equal(t, types.PublicKey("client"), key)
	case <-ctx.Done():
		t.Fatal("接受循环未继续处理后续连接")
	}
}

func TestNode_StopWaitsForHandlers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	network := mem.NewNetwork()

	started := make(chan struct{})
	var finished atomic.Bool
	server := newMemNode(t, network, "server", "10.8.0.1:4001", HandlerFunc(func(hctx context.Context, _ *peer.Peer[conn]) error {
		close(started)
		<-hctx.Done()
		finished.Store(true)
		return hctx.Err()
	}))
	require.NoError(t, server.Start(ctx))

	client := newMemNode(t, network, "client", "10.8.0.2:0", nil)
	require.NoError(t, client.Start(ctx))
	defer func() { _ = client.Stop(context.Background()) }()

	require.NoError(t, client.Connect(ctx, server.ListenAddr()))
	<-started

	require.NoError(t, server.Stop(ctx))
	assert.True(t, finished.Load())
}

func TestNode_StopWaitsForConnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	network := mem.NewNetwork()

	// 对端只接受原始连接，不完成握手，Connect 停在握手阶段
	remote := netip.MustParseAddrPort("10.9.0.2:4001")
	l, err := network.Listen(remote)
	require.NoError(t, err)
	defer l.Close()

	n := newMemNode(t, network, "node", "10.9.0.1:4001", nil)
	require.NoError(t, n.Start(ctx))

	connectErr := make(chan error, 1)
	go func() {
		connectErr <- n.Connect(context.Background(), remote)
	}()

	raw, err := l.Accept()
	require.NoError(t, err)
	defer raw.Close()

	start := time.Now()
	require.NoError(t, n.Stop(ctx))

	// Connect 随节点停止取消并返回
	select {
	case err := <-connectErr:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop 返回后 Connect 仍在进行")
	}
	assert.Less(t, time.Since(start), 5*time.Second, "Connect 应随节点停止取消，而不是等到握手超时")
}
