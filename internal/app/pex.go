package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/netip"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"

	"github.com/dep2p/go-p2p-transport/pkg/peer"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

// Handler 处理一个已建立的 Peer
//
// 返回后连接由节点关闭，需要保留连接时在内部调用 peer.Release。
type Handler interface {
	HandlePeer(ctx context.Context, p *peer.Peer[conn]) error
}

// HandlerFunc 函数形式的 Handler
type HandlerFunc func(ctx context.Context, p *peer.Peer[conn]) error

// HandlePeer 调用 f
func (f HandlerFunc) HandlePeer(ctx context.Context, p *peer.Peer[conn]) error {
	return f(ctx, p)
}

// ============================================================================
//                              AddrBook
// ============================================================================

// DefaultAddrBookSize 地址簿默认容量
const DefaultAddrBookSize = 1024

// AddrBook 已知地址集合，保持首次出现的顺序
//
// 容量有限，满时淘汰最早记入的地址。
type AddrBook struct {
	cache *lru.Cache[netip.AddrPort, struct{}]
}

// NewAddrBook 创建默认容量的地址簿
func NewAddrBook() *AddrBook {
	return NewAddrBookSize(DefaultAddrBookSize)
}

// NewAddrBookSize 创建容量为 size 的地址簿，size 非正时使用默认容量
func NewAddrBookSize(size int) *AddrBook {
	if size <= 0 {
		size = DefaultAddrBookSize
	}
	// size 为正时不会出错
	cache, _ := lru.New[netip.AddrPort, struct{}](size)
	return &AddrBook{cache: cache}
}

// Add 添加地址，返回新增数量；无效地址被忽略
//
// 已存在的地址不刷新顺序。
func (b *AddrBook) Add(addrs ...netip.AddrPort) int {
	added := 0
	for _, addr := range addrs {
		if !addr.IsValid() || addr.Port() == 0 {
			continue
		}
		if ok, _ := b.cache.ContainsOrAdd(addr, struct{}{}); !ok {
			added++
		}
	}
	return added
}

// Addrs 返回地址快照，按记入顺序排列
func (b *AddrBook) Addrs() []netip.AddrPort {
	return b.cache.Keys()
}

// Len 地址数量
func (b *AddrBook) Len() int {
	return b.cache.Len()
}

// ============================================================================
//                              PexHandler
// ============================================================================

// maxPexAddrs 单次交换接受的地址上限
const maxPexAddrs = 256

// PexHandler 节点地址交换
//
// 在 StreamPex 上双向发送已知地址，每行一个 "ip:port"，
// 发送完毕关闭写方向，读到对端 EOF 后结束。
type PexHandler struct {
	local []netip.AddrPort
	book  *AddrBook
}

var _ Handler = (*PexHandler)(nil)

// NewPexHandler 创建地址交换处理器
//
// local 为本节点的通告地址，总是发送给对端。
func NewPexHandler(local []netip.AddrPort, book *AddrBook) *PexHandler {
	if book == nil {
		book = NewAddrBook()
	}
	return &PexHandler{local: slices.Clone(local), book: book}
}

// Book 返回地址簿
func (h *PexHandler) Book() *AddrBook {
	return h.book
}

// HandlePeer 与 p 交换地址
func (h *PexHandler) HandlePeer(ctx context.Context, p *peer.Peer[conn]) (err error) {
	c := p.Conn()
	h.book.Add(c.AdvertisedAddrs()...)

	r, w, err := c.OpenBidirectional(ctx, types.StreamPex)
	if err != nil {
		return fmt.Errorf("打开 pex 流失败: %w", err)
	}
	defer func() {
		err = multierr.Append(err, r.Close())
	}()

	// 先发后收，两端对称执行
	sendErr := make(chan error, 1)
	go func() {
		sendErr <- h.send(w)
	}()

	n, recvErr := h.receive(r)
	err = multierr.Append(<-sendErr, recvErr)

	logger.Debug("地址交换完成",
		"peer", p.String(),
		"received", n,
		"known", h.book.Len(),
		"error", err)
	return err
}

func (h *PexHandler) send(w io.WriteCloser) error {
	bw := bufio.NewWriter(w)
	addrs := append(slices.Clone(h.local), h.book.Addrs()...)
	if len(addrs) > maxPexAddrs {
		addrs = addrs[:maxPexAddrs]
	}
	for _, addr := range addrs {
		if _, err := bw.WriteString(addr.String() + "\n"); err != nil {
			_ = w.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// receive 逐行读取地址，解析出一条就记入地址簿
func (h *PexHandler) receive(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 128), 128)

	lines := 0
	for scanner.Scan() {
		lines++
		if lines > maxPexAddrs {
			return lines - 1, fmt.Errorf("pex: 地址数量超过上限 %d", maxPexAddrs)
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		addr, err := netip.ParseAddrPort(line)
		if err != nil {
			// 无效行跳过，不影响其余地址
			logger.Debug("忽略无效 pex 地址", "line", line)
			continue
		}
		h.book.Add(addr)
	}
	return lines, scanner.Err()
}
