package muxer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-p2p-transport/pkg/lib/log"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

var logger = log.Logger("core/muxer")

const (
	// headerTimeout 读取入站流头部的超时
	headerTimeout = 10 * time.Second

	// headerOrderGrace 按接收顺序等待头部的时长
	//
	// 超过该时长仍未收到头部的流不再阻塞后续流，头部到达后单独分发。
	headerOrderGrace = 200 * time.Millisecond

	// inboundBacklog 等待分发的入站流上限，满时暂停接收
	inboundBacklog = 64
)

// Stream 底层流
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Session 底层多路复用会话
type Session[S Stream] interface {
	OpenStream(ctx context.Context) (S, error)
	AcceptStream(ctx context.Context) (S, error)
	Close() error
}

// readDeadliner 支持读超时的流
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// readCanceler 支持单独关闭读方向的流
type readCanceler interface {
	CloseRead() error
}

// Router 按 StreamID 分发入站流
type Router[S Stream] struct {
	session    Session[S]
	maxPending int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	inbound chan *inboundStream[S]

	mu      sync.Mutex
	closed  bool
	pending map[types.StreamID][]S
	waiters map[types.StreamID][]*waiter[S]

	closeOnce sync.Once
	closeErr  error
}

// NewRouter 创建路由器并启动入站流接收循环
func NewRouter[S Stream](session Session[S], cfg Config) *Router[S] {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router[S]{
		session:    session,
		maxPending: cfg.maxPending(),
		ctx:        ctx,
		cancel:     cancel,
		inbound:    make(chan *inboundStream[S], inboundBacklog),
		pending:    make(map[types.StreamID][]S),
		waiters:    make(map[types.StreamID][]*waiter[S]),
	}

	r.wg.Add(2)
	go r.acceptLoop()
	go r.dispatchLoop()
	return r
}

// OpenBidirectional 打开 id 对应的一组读写通道
//
// 写端立即建立；读端在首次读取时等待对端为同一 id 打开的流。
func (r *Router[S]) OpenBidirectional(ctx context.Context, id types.StreamID) (io.ReadCloser, io.WriteCloser, error) {
	if !id.IsValid() {
		return nil, nil, fmt.Errorf("%w: %d", types.ErrInvalidStreamID, uint8(id))
	}

	// 先占位读端，保证 FIFO 顺序与打开顺序一致
	w, err := r.reserve(id)
	if err != nil {
		return nil, nil, err
	}
	reader := &readHalf[S]{waiter: w, closed: make(chan struct{})}

	out, err := r.session.OpenStream(ctx)
	if err != nil {
		_ = reader.Close()
		return nil, nil, err
	}
	if _, err := out.Write(varint.ToUvarint(uint64(id))); err != nil {
		_ = out.Close()
		_ = reader.Close()
		return nil, nil, fmt.Errorf("写入流头部失败: %w", parseError(err))
	}

	logger.Debug("打开逻辑流", "stream", id.String())
	return reader, &writeHalf[S]{stream: out}, nil
}

// Close 关闭路由器与底层会话
func (r *Router[S]) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		pending := r.pending
		waiters := r.waiters
		r.pending = nil
		r.waiters = nil
		r.mu.Unlock()

		r.cancel()
		r.closeErr = r.session.Close()

		for _, streams := range pending {
			for _, s := range streams {
				_ = s.Close()
			}
		}
		for _, ws := range waiters {
			for _, w := range ws {
				w.fail()
			}
		}

		r.wg.Wait()
	})
	return r.closeErr
}

// Done 路由器关闭或接收循环退出时关闭
func (r *Router[S]) Done() <-chan struct{} {
	return r.ctx.Done()
}

// reserve 为 id 登记一个读端
func (r *Router[S]) reserve(id types.StreamID) (*waiter[S], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRouterClosed
	}

	w := newWaiter[S]()
	if queue := r.pending[id]; len(queue) > 0 {
		w.deliver(queue[0])
		r.pending[id] = queue[1:]
		return w, nil
	}
	r.waiters[id] = append(r.waiters[id], w)
	return w, nil
}

// dispatch 将入站流交给等待中的读端，否则缓存
func (r *Router[S]) dispatch(id types.StreamID, s S) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		_ = s.Close()
		return
	}

	for ws := r.waiters[id]; len(ws) > 0; ws = r.waiters[id] {
		w := ws[0]
		r.waiters[id] = ws[1:]
		if w.deliver(s) {
			return
		}
	}

	if len(r.pending[id]) >= r.maxPending {
		logger.Warn("未认领的入站流过多，丢弃", "stream", id.String(), "limit", r.maxPending)
		_ = s.Close()
		return
	}
	r.pending[id] = append(r.pending[id], s)
}

// inboundStream 已接收、头部可能尚未读完的入站流
type inboundStream[S Stream] struct {
	stream   S
	accepted time.Time

	// ready 关闭后 id 与 ok 可读
	ready chan struct{}
	id    types.StreamID
	ok    bool
}

func (r *Router[S]) acceptLoop() {
	defer r.wg.Done()
	// 会话结束后路由器不再可用
	defer func() { go r.Close() }()

	for {
		s, err := r.session.AcceptStream(r.ctx)
		if err != nil {
			if r.ctx.Err() == nil {
				logger.Debug("入站流接收结束", "error", err)
			}
			return
		}

		in := &inboundStream[S]{stream: s, accepted: time.Now(), ready: make(chan struct{})}

		// 每条流单独读取头部，一条流迟迟不写头部不影响其他流
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.readHeader(in)
		}()

		select {
		case r.inbound <- in:
		case <-r.ctx.Done():
			_ = s.Close()
			return
		}
	}
}

// dispatchLoop 按接收顺序分发入站流
//
// 同一 StreamID 的流按对端打开顺序配对。头部在 headerOrderGrace 内
// 未到达的流让出顺序，到达后再分发。
func (r *Router[S]) dispatchLoop() {
	defer r.wg.Done()

	timer := time.NewTimer(headerOrderGrace)
	defer timer.Stop()

	for {
		var in *inboundStream[S]
		select {
		case in = <-r.inbound:
		case <-r.ctx.Done():
			return
		}

		timer.Reset(time.Until(in.accepted.Add(headerOrderGrace)))
		select {
		case <-in.ready:
			r.finish(in)
		case <-timer.C:
			logger.Debug("入站流头部迟到，不再保持顺序")
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				select {
				case <-in.ready:
					r.finish(in)
				case <-r.ctx.Done():
				}
			}()
		case <-r.ctx.Done():
			return
		}
	}
}

// readHeader 读取头部，失败或 id 未知时关闭流
func (r *Router[S]) readHeader(in *inboundStream[S]) {
	defer close(in.ready)

	s := in.stream
	if d, ok := any(s).(readDeadliner); ok {
		_ = d.SetReadDeadline(time.Now().Add(headerTimeout))
		defer func() { _ = d.SetReadDeadline(time.Time{}) }()
	}

	raw, err := varint.ReadUvarint(byteReader{s})
	if err != nil {
		logger.Debug("读取流头部失败", "error", err)
		_ = s.Close()
		return
	}

	if raw > 0xff || !types.StreamID(raw).IsValid() {
		logger.Warn("拒绝未知 StreamID 的入站流", "id", raw)
		_ = s.Close()
		return
	}

	in.id = types.StreamID(raw)
	in.ok = true
}

func (r *Router[S]) finish(in *inboundStream[S]) {
	if in.ok {
		r.dispatch(in.id, in.stream)
	}
}

// byteReader 逐字节读取，避免越过头部读入负载
type byteReader struct {
	r io.Reader
}

func (b byteReader) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b.r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ============================================================================
//                              读写两端
// ============================================================================

// waiter 读端占位，至多收到一条流
type waiter[S Stream] struct {
	mu     sync.Mutex
	stream S
	ok     bool
	done   bool
	ready  chan struct{}
}

func newWaiter[S Stream]() *waiter[S] {
	return &waiter[S]{ready: make(chan struct{})}
}

// deliver 交付流；读端已关闭时返回 false
func (w *waiter[S]) deliver(s S) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return false
	}
	w.stream = s
	w.ok = true
	w.done = true
	close(w.ready)
	return true
}

// fail 路由器关闭，不会再有流
func (w *waiter[S]) fail() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.done {
		w.done = true
		close(w.ready)
	}
}

// cancel 关闭读端，返回已交付但未取走的流
func (w *waiter[S]) cancel() (S, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.done {
		w.done = true
		close(w.ready)
	}
	s, ok := w.stream, w.ok
	w.ok = false
	return s, ok
}

// readHalf 读端
type readHalf[S Stream] struct {
	waiter *waiter[S]

	closeOnce sync.Once
	closed    chan struct{}
}

func (h *readHalf[S]) Read(p []byte) (int, error) {
	select {
	case <-h.waiter.ready:
	case <-h.closed:
		return 0, io.ErrClosedPipe
	}

	h.waiter.mu.Lock()
	s, ok := h.waiter.stream, h.waiter.ok
	h.waiter.mu.Unlock()
	if !ok {
		select {
		case <-h.closed:
			return 0, io.ErrClosedPipe
		default:
			return 0, ErrRouterClosed
		}
	}

	n, err := s.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = parseError(err)
	}
	return n, err
}

func (h *readHalf[S]) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.closed)
		s, ok := h.waiter.cancel()
		if !ok {
			return
		}
		if rc, isRC := any(s).(readCanceler); isRC {
			_ = rc.CloseRead()
		}
		err = s.Close()
	})
	return err
}

// writeHalf 写端
type writeHalf[S Stream] struct {
	stream    S
	closeOnce sync.Once
	closeErr  error
}

func (h *writeHalf[S]) Write(p []byte) (int, error) {
	n, err := h.stream.Write(p)
	return n, parseError(err)
}

// Close 关闭写方向，对端读到 EOF
func (h *writeHalf[S]) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.stream.Close()
	})
	return h.closeErr
}
