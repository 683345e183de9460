package binding

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	transportif "github.com/dep2p/go-p2p-transport/pkg/interfaces/transport"
)

// Tracked 可被 Registry 登记的连接
type Tracked[C any] interface {
	transportif.Connection
	ID() string
	Close() error
	OnClose(fn func(C))
}

type result[C any] struct {
	conn C
	err  error
}

// Registry 一次绑定期间的连接登记与入站序列
//
// 字节流后端（Binding）与 QUIC 后端共用：
//   - Track 登记连接，连接关闭时自动注销
//   - Deliver 与 Fail 把升级结果交给入站序列
//   - Close 关闭全部登记的连接并结束入站序列
type Registry[C Tracked[C]] struct {
	ctx     context.Context
	cancel  context.CancelFunc
	results chan result[C]

	mu     sync.Mutex
	conns  map[string]C
	closed bool
}

// NewRegistry 创建连接登记表
func NewRegistry[C Tracked[C]]() *Registry[C] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry[C]{
		ctx:     ctx,
		cancel:  cancel,
		results: make(chan result[C]),
		conns:   make(map[string]C),
	}
}

// Context 绑定结束时取消
func (r *Registry[C]) Context() context.Context {
	return r.ctx
}

// End 结束入站序列，不关闭已登记的连接
func (r *Registry[C]) End() {
	r.cancel()
}

// Incoming 入站序列，End 或 Close 后结束
func (r *Registry[C]) Incoming() transportif.Incoming[C] {
	return func(yield func(C, error) bool) {
		for {
			select {
			case <-r.ctx.Done():
				return
			case res := <-r.results:
				if !yield(res.conn, res.err) {
					return
				}
			}
		}
	}
}

// Track 登记连接，已关闭时返回 false
func (r *Registry[C]) Track(c C) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.conns[c.ID()] = c
	r.mu.Unlock()

	c.OnClose(func(c C) {
		r.mu.Lock()
		delete(r.conns, c.ID())
		r.mu.Unlock()
	})
	return true
}

// Deliver 把连接交给入站序列
//
// 序列已结束时返回 false，未交出的连接随即关闭。
func (r *Registry[C]) Deliver(c C) bool {
	if r.send(result[C]{conn: c}) {
		return true
	}
	_ = c.Close()
	return false
}

// Fail 把单条连接的失败交给入站序列，序列已结束时返回 false
func (r *Registry[C]) Fail(err error) bool {
	return r.send(result[C]{err: err})
}

func (r *Registry[C]) send(res result[C]) bool {
	select {
	case r.results <- res:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Len 登记中的连接数
func (r *Registry[C]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// IsClosed 检查是否已关闭
func (r *Registry[C]) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close 结束入站序列并关闭全部登记的连接
//
// 之后 Track 返回 false。返回关闭的连接数与合并后的错误。
func (r *Registry[C]) Close() (int, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, nil
	}
	r.closed = true
	conns := make([]C, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]C)
	r.mu.Unlock()

	r.cancel()

	var err error
	for _, c := range conns {
		err = multierr.Append(err, c.Close())
	}
	return len(conns), err
}
