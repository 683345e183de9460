package mem

import "errors"

var (
	// ErrTransportClosed 传输未绑定或已关闭
	ErrTransportClosed = errors.New("mem: transport closed")

	// ErrAlreadyBound 重复绑定
	ErrAlreadyBound = errors.New("mem: transport already bound")

	// ErrAddrInUse 地址已被占用
	ErrAddrInUse = errors.New("mem: address already in use")

	// ErrConnectionRefused 目标地址没有监听
	ErrConnectionRefused = errors.New("mem: connection refused")

	// ErrBacklogFull 目标监听队列已满
	ErrBacklogFull = errors.New("mem: listener backlog full")
)
