package upgrader

import "errors"

var (
	// ErrInvalidDirection 方向无效
	ErrInvalidDirection = errors.New("upgrader: invalid direction")

	// ErrHandshakeFailed hello 交换失败
	ErrHandshakeFailed = errors.New("upgrader: handshake failed")

	// ErrMuxerSetupFailed 多路复用器设置失败
	ErrMuxerSetupFailed = errors.New("upgrader: muxer setup failed")

	// ErrConnClosed 连接已关闭
	ErrConnClosed = errors.New("upgrader: connection closed")
)
