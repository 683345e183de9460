package peer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	transportif "github.com/dep2p/go-p2p-transport/pkg/interfaces/transport"
)

// State Peer 生命周期标记
type State int32

const (
	// StateConnected 已连接，连接由持有者独占
	StateConnected State = iota
	// StateClosed 连接已关闭
	StateClosed
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Peer 连接与方向的配对
//
// 由 Accept / Connect 创建，持有者独占，直到交给节点管理层。
// 一个连接永远不会被两个 Peer 共享。
type Peer[C transportif.Connection] struct {
	direction Direction[C]

	state     atomic.Int32
	released  atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// From 从方向构造 Peer，不做任何校验
func From[C transportif.Connection](dir Direction[C]) *Peer[C] {
	return &Peer[C]{direction: dir}
}

// Conn 返回底层连接
func (p *Peer[C]) Conn() C {
	return p.direction.conn
}

// Direction 返回方向
func (p *Peer[C]) Direction() Direction[C] {
	return p.direction
}

// State 返回当前生命周期状态
func (p *Peer[C]) State() State {
	return State(p.state.Load())
}

// Close 关闭底层连接，重复调用返回第一次的结果
func (p *Peer[C]) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.direction.conn.Close()
		p.state.Store(int32(StateClosed))
	})
	return p.closeErr
}

// String 返回便于日志阅读的描述
func (p *Peer[C]) String() string {
	conn := p.direction.conn
	return fmt.Sprintf("Peer{%s %s key=%s %s}",
		p.direction.kind, conn.RemoteAddr(), conn.PublicKey().ShortString(), p.State())
}

// Release 将连接所有权移交给调用方（通常是节点管理层）
//
// 之后 Scoped 退出时不再关闭该连接，释放责任转移给接收方。
func Release[C transportif.Connection](p *Peer[C]) C {
	p.released.Store(true)
	return p.direction.conn
}

// Scoped 在作用域内使用 Peer，并保证每条退出路径都释放连接
//
// fn 返回（包括返回错误或 panic）后关闭连接，除非 fn 内调用了 Release。
// 关闭错误与 fn 的错误合并返回。
func Scoped[C transportif.Connection](p *Peer[C], fn func(*Peer[C]) error) (err error) {
	defer func() {
		if p.released.Load() {
			return
		}
		err = multierr.Append(err, p.Close())
	}()
	return fn(p)
}
