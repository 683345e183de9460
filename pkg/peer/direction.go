// Package peer 定义交给节点管理层的 Peer 封装
//
// 核心层只负责构造：Accept 产生入站 Peer，Connect 产生出站 Peer。
// 之后的握手、认证、保留或关闭由节点管理层决定。
package peer

import (
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

// Direction 携带连接及其来源标签的和类型
//
// 只能通过 Incoming / Outgoing 构造，恰好持有一个连接。
type Direction[C any] struct {
	kind types.Direction
	conn C
}

// Incoming 构造入站方向（由 Accept 产生）
func Incoming[C any](conn C) Direction[C] {
	return Direction[C]{kind: types.DirInbound, conn: conn}
}

// Outgoing 构造出站方向（由 Connect 产生）
func Outgoing[C any](conn C) Direction[C] {
	return Direction[C]{kind: types.DirOutbound, conn: conn}
}

// Kind 返回方向标签
func (d Direction[C]) Kind() types.Direction {
	return d.kind
}

// Conn 返回携带的连接
func (d Direction[C]) Conn() C {
	return d.conn
}

// IsIncoming 是否为入站
func (d Direction[C]) IsIncoming() bool {
	return d.kind == types.DirInbound
}

// IsOutgoing 是否为出站
func (d Direction[C]) IsOutgoing() bool {
	return d.kind == types.DirOutbound
}
