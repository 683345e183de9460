package transport

import (
	"context"
	"io"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-p2p-transport/config"
	"github.com/dep2p/go-p2p-transport/internal/core/identity"
	"github.com/dep2p/go-p2p-transport/internal/core/transport/mem"
	transportif "github.com/dep2p/go-p2p-transport/pkg/interfaces/transport"
	"github.com/dep2p/go-p2p-transport/pkg/protocol"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, config.TransportTCP, cfg.Kind)
	assert.Equal(t, 10*time.Second, cfg.Upgrader.HandshakeTimeout)
	assert.Equal(t, 30*time.Second, cfg.TCP.DialTimeout)

	t.Log("✅ NewConfig 返回正确的默认值")
}

func TestConfigFromUnified(t *testing.T) {
	t.Run("Nil", func(t *testing.T) {
		assert.Equal(t, NewConfig(), ConfigFromUnified(nil))
	})

	t.Run("Fields", func(t *testing.T) {
		unified := config.NewConfig()
		unified.Transport.Kind = config.TransportQUIC
		unified.Transport.HandshakeTimeout = config.Duration(3 * time.Second)
		unified.Transport.Muxer.MaxPendingPerStream = 4
		unified.Transport.QUIC.MaxStreams = 64

		cfg := ConfigFromUnified(unified)
		assert.Equal(t, config.TransportQUIC, cfg.Kind)
		assert.Equal(t, 3*time.Second, cfg.Upgrader.HandshakeTimeout)
		assert.Equal(t, 3*time.Second, cfg.QUIC.HandshakeTimeout)
		assert.Equal(t, 4, cfg.Upgrader.Muxer.MaxPendingPerStream)
		assert.Equal(t, 4, cfg.QUIC.Muxer.MaxPendingPerStream)
		assert.Equal(t, int64(64), cfg.QUIC.MaxIncomingStreams)
		assert.Equal(t, cfg.Upgrader, cfg.TCP.Upgrader)
	})
}

func TestNew_Kinds(t *testing.T) {
	for _, kind := range []string{config.TransportTCP, config.TransportQUIC, config.TransportMem} {
		t.Run(kind, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Kind = kind

			tr, err := New(cfg, mem.NewNetwork())
			require.NoError(t, err)
			require.NotNil(t, tr)
			assert.NoError(t, tr.Shutdown())
		})
	}

	cfg := NewConfig()
	cfg.Kind = "websocket"
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

// 擦除后的传输与具体类型行为一致
func TestNew_ErasedLoopback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	network := mem.NewNetwork()
	cfg := NewConfig()
	cfg.Kind = config.TransportMem

	newRunning := func(addr string, key types.PublicKey) *protocol.Running[transportif.Connection, transportif.Endpoint[transportif.Connection]] {
		tr, err := New(cfg, network)
		require.NoError(t, err)
		running, err := protocol.New(tr).Start(ctx, types.BindInfo{
			Addr:      netip.MustParseAddrPort(addr),
			PublicKey: key,
		})
		require.NoError(t, err)
		return running
	}

	server := newRunning("10.1.0.1:4001", "server")
	client := newRunning("10.1.0.2:0", "client")

	out, err := client.Connect(ctx, server.ListenAddr())
	require.NoError(t, err)
	in, err := server.Accept()
	require.NoError(t, err)
	assert.Equal(t, types.PublicKey("client"), in.Conn().PublicKey())

	r, w, err := out.Conn().OpenBidirectional(ctx, types.StreamPex)
	require.NoError(t, err)
	r2, w2, err := in.Conn().OpenBidirectional(ctx, types.StreamPex)
	require.NoError(t, err)

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	data, err := io.ReadAll(r2)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	require.NoError(t, w2.Close())
	_, err = io.ReadAll(r)
	require.NoError(t, err)

	require.NoError(t, out.Close())
	require.NoError(t, in.Close())

	_, err = client.Stop()
	require.NoError(t, err)
	_, err = server.Stop()
	require.NoError(t, err)
}

func TestModule(t *testing.T) {
	unified := config.NewConfig()
	unified.Transport.Kind = config.TransportQUIC

	var (
		tr  transportif.Dynamic
		cfg Config
	)
	app := fxtest.New(t,
		fx.Supply(unified),
		identity.Module(),
		Module(),
		fx.Populate(&tr, &cfg),
	)
	app.RequireStart()

	require.NotNil(t, tr)
	assert.Equal(t, config.TransportQUIC, cfg.Kind)
	assert.NotNil(t, cfg.QUIC.PrivateKey)

	app.RequireStop()

	t.Log("✅ Module 按配置提供传输")
}
