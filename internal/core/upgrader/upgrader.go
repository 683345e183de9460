package upgrader

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"slices"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-p2p-transport/internal/core/muxer"
	"github.com/dep2p/go-p2p-transport/internal/core/transport/hello"
	"github.com/dep2p/go-p2p-transport/pkg/lib/log"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

var logger = log.Logger("core/upgrader")

// Upgrader 连接升级器
//
// 每次 Bind 创建一个，携带本地要通告的身份与地址。
type Upgrader struct {
	local hello.Message
	cfg   Config
}

// New 创建连接升级器
func New(info types.BindInfo, cfg Config) *Upgrader {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = NewConfig().HandshakeTimeout
	}
	return &Upgrader{
		local: hello.Message{
			PublicKey:      info.PublicKey,
			AdvertiseAddrs: slices.Clone(info.AdvertiseAddrs),
		},
		cfg: cfg,
	}
}

// Upgrade 升级连接
//
// 失败时 raw 会被关闭。local 与 remote 是该链路两端的地址，
// 由调用方给出（内存管道没有真实地址）。
func (u *Upgrader) Upgrade(
	ctx context.Context,
	raw net.Conn,
	dir types.Direction,
	local, remote netip.AddrPort,
) (*Conn, error) {
	if !dir.IsValid() {
		_ = raw.Close()
		return nil, ErrInvalidDirection
	}

	hctx, cancel := context.WithTimeout(ctx, u.cfg.HandshakeTimeout)
	defer cancel()

	logger.Debug("执行 hello 交换", "direction", dir.String(), "remoteAddr", remote)
	peerMsg, err := hello.Exchange(hctx, raw, u.local)
	if err != nil {
		logger.Warn("hello 交换失败", "remoteAddr", remote, "error", err)
		_ = raw.Close()
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	sess, err := muxer.NewYamuxSession(raw, dir == types.DirInbound, u.cfg.Muxer)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("%w: %w", ErrMuxerSetupFailed, err)
	}
	router := muxer.NewRouter[*yamux.Stream](sess, u.cfg.Muxer)

	c := newConn(raw, router, dir, local, remote, peerMsg)
	logger.Info("连接升级成功",
		"id", c.ID(),
		"direction", dir.String(),
		"remoteAddr", remote,
		"remotePeer", peerMsg.PublicKey.ShortString())
	return c, nil
}

// AddrPort 将 net.Addr 转换为 netip.AddrPort，无法识别时返回零值
func AddrPort(a net.Addr) netip.AddrPort {
	switch addr := a.(type) {
	case *net.TCPAddr:
		ap := addr.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	case *net.UDPAddr:
		ap := addr.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	case nil:
		return netip.AddrPort{}
	}

	ap, err := netip.ParseAddrPort(a.String())
	if err != nil {
		return netip.AddrPort{}
	}
	return ap
}
