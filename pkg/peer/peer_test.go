package peer

import (
	"context"
	"errors"
	"io"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2p-transport/pkg/types"
)

// mockConn 记录关闭次数的连接
type mockConn struct {
	remote   netip.AddrPort
	key      types.PublicKey
	closed   int
	closeErr error
}

func newMockConn() *mockConn {
	return &mockConn{
		remote: netip.MustParseAddrPort("192.0.2.10:4001"),
		key:    "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
	}
}

func (c *mockConn) AdvertisedAddrs() []netip.AddrPort { return []netip.AddrPort{c.remote} }
func (c *mockConn) LocalAddr() netip.AddrPort         { return netip.MustParseAddrPort("127.0.0.1:4001") }
func (c *mockConn) RemoteAddr() netip.AddrPort        { return c.remote }
func (c *mockConn) PublicKey() types.PublicKey        { return c.key }
func (c *mockConn) OpenBidirectional(context.Context, types.StreamID) (io.ReadCloser, io.WriteCloser, error) {
	return nil, nil, errors.New("not supported")
}
func (c *mockConn) Close() error {
	c.closed++
	return c.closeErr
}

func TestDirection_Tagging(t *testing.T) {
	conn := newMockConn()

	in := From(Incoming(conn))
	out := From(Outgoing(conn))

	assert.Equal(t, types.DirInbound, in.Direction().Kind())
	assert.Equal(t, types.DirOutbound, out.Direction().Kind())
	assert.True(t, in.Direction().IsIncoming())
	assert.False(t, in.Direction().IsOutgoing())
	assert.True(t, out.Direction().IsOutgoing())

	// 两者只在方向标签上不同
	assert.Same(t, in.Conn(), out.Conn())
	assert.Equal(t, in.Conn().AdvertisedAddrs(), out.Conn().AdvertisedAddrs())
	assert.Equal(t, in.Conn().PublicKey(), out.Conn().PublicKey())
	assert.Equal(t, in.State(), out.State())
}

func TestPeer_CloseIdempotent(t *testing.T) {
	conn := newMockConn()
	conn.closeErr = errors.New("already gone")
	p := From(Incoming(conn))

	assert.Equal(t, StateConnected, p.State())
	assert.ErrorIs(t, p.Close(), conn.closeErr)
	assert.ErrorIs(t, p.Close(), conn.closeErr)
	assert.Equal(t, 1, conn.closed)
	assert.Equal(t, StateClosed, p.State())
}

func TestPeer_String(t *testing.T) {
	p := From(Outgoing(newMockConn()))
	assert.Equal(t, "Peer{outbound 192.0.2.10:4001 key=9xQeWvG8 connected}", p.String())
}

func TestScoped_ClosesOnSuccess(t *testing.T) {
	conn := newMockConn()
	p := From(Incoming(conn))

	err := Scoped(p, func(*Peer[*mockConn]) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, conn.closed)
}

func TestScoped_ClosesOnError(t *testing.T) {
	conn := newMockConn()
	conn.closeErr = errors.New("close failed")
	p := From(Incoming(conn))
	fnErr := errors.New("handshake failed")

	err := Scoped(p, func(*Peer[*mockConn]) error { return fnErr })
	assert.ErrorIs(t, err, fnErr)
	assert.ErrorIs(t, err, conn.closeErr, "关闭错误应与 fn 错误合并")
	assert.Equal(t, 1, conn.closed)
}

func TestScoped_ClosesOnPanic(t *testing.T) {
	conn := newMockConn()
	p := From(Incoming(conn))

	assert.Panics(t, func() {
		_ = Scoped(p, func(*Peer[*mockConn]) error { panic("boom") })
	})
	assert.Equal(t, 1, conn.closed)
}

func TestScoped_Release(t *testing.T) {
	conn := newMockConn()
	p := From(Outgoing(conn))

	var handedOff *mockConn
	err := Scoped(p, func(p *Peer[*mockConn]) error {
		handedOff = Release(p)
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, conn, handedOff)
	assert.Zero(t, conn.closed, "移交后不应关闭")
	assert.Equal(t, StateConnected, p.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(9).String())
}
