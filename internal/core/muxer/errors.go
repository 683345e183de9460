package muxer

import (
	"errors"

	"github.com/hashicorp/yamux"
)

var (
	// ErrRouterClosed 路由器已关闭
	ErrRouterClosed = errors.New("muxer: router closed")

	// ErrConnClosed 底层会话已关闭
	ErrConnClosed = errors.New("muxer: connection closed")

	// ErrStreamReset 流被对端重置
	ErrStreamReset = errors.New("muxer: stream reset")
)

// parseError 转换 yamux 错误为本包错误
func parseError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, yamux.ErrConnectionReset) {
		return ErrStreamReset
	}

	if errors.Is(err, yamux.ErrSessionShutdown) {
		return ErrConnClosed
	}

	return err
}
