package tcp

import "errors"

var (
	// ErrTransportClosed 传输未绑定或已关闭
	ErrTransportClosed = errors.New("tcp: transport closed")

	// ErrAlreadyBound 重复绑定
	ErrAlreadyBound = errors.New("tcp: transport already bound")
)
