package quic

import "errors"

var (
	// ErrTransportClosed 传输未绑定或已关闭
	ErrTransportClosed = errors.New("quic: transport closed")

	// ErrAlreadyBound 重复绑定
	ErrAlreadyBound = errors.New("quic: transport already bound")

	// ErrConnectionClosed 连接已关闭
	ErrConnectionClosed = errors.New("quic: connection closed")

	// ErrInvalidAddress 无效地址
	ErrInvalidAddress = errors.New("quic: invalid address")
)
