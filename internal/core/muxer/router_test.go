package muxer

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/yamux"
	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2p-transport/pkg/types"
)

func newSessionPair(t *testing.T) (*YamuxSession, *YamuxSession) {
	t.Helper()

	c1, c2 := net.Pipe()
	client, err := NewYamuxSession(c1, false, DefaultConfig())
	require.NoError(t, err)
	server, err := NewYamuxSession(c2, true, DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func newRouterPair(t *testing.T) (*Router[*yamux.Stream], *Router[*yamux.Stream]) {
	t.Helper()

	client, server := newSessionPair(t)
	a := NewRouter[*yamux.Stream](client, DefaultConfig())
	b := NewRouter[*yamux.Stream](server, DefaultConfig())

	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func readN(t *testing.T, r io.Reader, n int) string {
	t.Helper()
	buf := make([]byte, n)
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	return string(buf)
}

func TestRouter_OpenBidirectional(t *testing.T) {
	a, b := newRouterPair(t)
	ctx := testContext(t)

	ra, wa, err := a.OpenBidirectional(ctx, types.StreamPex)
	require.NoError(t, err)
	rb, wb, err := b.OpenBidirectional(ctx, types.StreamPex)
	require.NoError(t, err)

	_, err = wa.Write([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "ping", readN(t, rb, 4))

	_, err = wb.Write([]byte("pong"))
	require.NoError(t, err)
	assert.Equal(t, "pong", readN(t, ra, 4))

	// 关闭写端后对端读到 EOF
	require.NoError(t, wa.Close())
	_, err = rb.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	assert.NoError(t, ra.Close())
	assert.NoError(t, rb.Close())
	assert.NoError(t, wb.Close())
}

func TestRouter_DuplicateOpenIsFIFO(t *testing.T) {
	a, b := newRouterPair(t)
	ctx := testContext(t)

	_, w1, err := a.OpenBidirectional(ctx, types.StreamPex)
	require.NoError(t, err)
	_, w2, err := a.OpenBidirectional(ctx, types.StreamPex)
	require.NoError(t, err)

	_, err = w1.Write([]byte("one"))
	require.NoError(t, err)
	_, err = w2.Write([]byte("two"))
	require.NoError(t, err)

	r1, _, err := b.OpenBidirectional(ctx, types.StreamPex)
	require.NoError(t, err)
	r2, _, err := b.OpenBidirectional(ctx, types.StreamPex)
	require.NoError(t, err)

	assert.Equal(t, "one", readN(t, r1, 3))
	assert.Equal(t, "two", readN(t, r2, 3))
}

// TestRouter_StalledHeaderDoesNotBlock 一条流迟迟不写头部时后续流照常分发
func TestRouter_StalledHeaderDoesNotBlock(t *testing.T) {
	client, server := newSessionPair(t)
	router := NewRouter[*yamux.Stream](server, DefaultConfig())
	t.Cleanup(func() { _ = router.Close() })
	ctx := testContext(t)

	stalled, err := client.OpenStream(ctx)
	require.NoError(t, err)

	s, err := client.OpenStream(ctx)
	require.NoError(t, err)
	_, err = s.Write(append(varint.ToUvarint(uint64(types.StreamPex)), "next"...))
	require.NoError(t, err)

	r1, _, err := router.OpenBidirectional(ctx, types.StreamPex)
	require.NoError(t, err)

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 4)
		if _, err := io.ReadFull(r1, buf); err == nil {
			got <- string(buf)
		}
	}()

	select {
	case v := <-got:
		assert.Equal(t, "next", v)
	case <-time.After(headerTimeout / 2):
		t.Fatal("后续流被未写头部的流阻塞")
	}

	// 迟到的头部到达后仍然分发
	_, err = stalled.Write(append(varint.ToUvarint(uint64(types.StreamPex)), "late"...))
	require.NoError(t, err)

	r2, _, err := router.OpenBidirectional(ctx, types.StreamPex)
	require.NoError(t, err)
	assert.Equal(t, "late", readN(t, r2, 4))
}

func TestRouter_InvalidStreamID(t *testing.T) {
	a, _ := newRouterPair(t)

	_, _, err := a.OpenBidirectional(testContext(t), types.StreamID(0))
	assert.ErrorIs(t, err, types.ErrInvalidStreamID)
}

func TestRouter_RejectsUnknownStreamID(t *testing.T) {
	client, server := newSessionPair(t)
	router := NewRouter[*yamux.Stream](server, DefaultConfig())
	t.Cleanup(func() { _ = router.Close() })

	s, err := client.OpenStream(testContext(t))
	require.NoError(t, err)
	_, err = s.Write(varint.ToUvarint(200))
	require.NoError(t, err)

	require.NoError(t, s.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = s.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF, "未知 StreamID 的流应被关闭")
}

func TestRouter_CloseFailsPendingReaders(t *testing.T) {
	a, _ := newRouterPair(t)

	r, _, err := a.OpenBidirectional(testContext(t), types.StreamPex)
	require.NoError(t, err)

	readErr := make(chan error, 1)
	go func() {
		_, err := r.Read(make([]byte, 1))
		readErr <- err
	}()

	require.NoError(t, a.Close())

	select {
	case err := <-readErr:
		assert.ErrorIs(t, err, ErrRouterClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("关闭路由器后读端未返回")
	}

	_, _, err = a.OpenBidirectional(testContext(t), types.StreamPex)
	assert.ErrorIs(t, err, ErrRouterClosed)

	select {
	case <-a.Done():
	default:
		t.Fatal("Done 应已关闭")
	}
}

func TestRouter_ReaderCloseBeforeDelivery(t *testing.T) {
	a, _ := newRouterPair(t)

	r, w, err := a.OpenBidirectional(testContext(t), types.StreamPex)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "Close 应幂等")

	_, err = r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestRouter_RemoteCloseEndsRouter(t *testing.T) {
	a, b := newRouterPair(t)

	require.NoError(t, b.Close())

	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("对端关闭后路由器应结束")
	}
}

func TestConfig_ToYamux(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxStreams = 64
	cfg.MaxStreamWindowSize = 512 * 1024
	cfg.EnableKeepAlive = false

	ycfg := cfg.toYamux()
	assert.Equal(t, 64, ycfg.AcceptBacklog)
	assert.Equal(t, uint32(512*1024), ycfg.MaxStreamWindowSize)
	assert.False(t, ycfg.EnableKeepAlive)
	assert.NoError(t, yamux.VerifyConfig(ycfg))

	assert.Equal(t, 16, Config{}.maxPending())
}
