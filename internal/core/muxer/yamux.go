package muxer

import (
	"context"
	"fmt"
	"net"

	"github.com/hashicorp/yamux"
)

// YamuxSession 封装 yamux.Session，实现 Session 接口
type YamuxSession struct {
	session  *yamux.Session
	isServer bool
}

var _ Session[*yamux.Stream] = (*YamuxSession)(nil)

// NewYamuxSession 在 conn 上建立 yamux 会话
//
// 连接两端必须一端为服务端、一端为客户端。
func NewYamuxSession(conn net.Conn, isServer bool, cfg Config) (*YamuxSession, error) {
	ycfg := cfg.toYamux()
	if err := yamux.VerifyConfig(ycfg); err != nil {
		return nil, fmt.Errorf("invalid yamux config: %w", err)
	}

	var (
		sess *yamux.Session
		err  error
	)
	if isServer {
		sess, err = yamux.Server(conn, ycfg)
	} else {
		sess, err = yamux.Client(conn, ycfg)
	}
	if err != nil {
		return nil, fmt.Errorf("创建 yamux 会话失败: %w", err)
	}

	return &YamuxSession{session: sess, isServer: isServer}, nil
}

// OpenStream 创建新流
func (s *YamuxSession) OpenStream(ctx context.Context) (*yamux.Stream, error) {
	// yamux 的 OpenStream 不支持 context，在单独的 goroutine 中处理
	type result struct {
		stream *yamux.Stream
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		st, err := s.session.OpenStream()
		resultCh <- result{stream: st, err: err}
	}()

	select {
	case <-ctx.Done():
		// 关闭迟到的流以防止泄漏
		go func() {
			if r := <-resultCh; r.stream != nil {
				_ = r.stream.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("创建流失败: %w", parseError(r.err))
		}
		return r.stream, nil
	}
}

// AcceptStream 接受新流
func (s *YamuxSession) AcceptStream(ctx context.Context) (*yamux.Stream, error) {
	st, err := s.session.AcceptStreamWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("接受流失败: %w", parseError(err))
	}
	return st, nil
}

// Close 关闭会话及其上的全部流
func (s *YamuxSession) Close() error {
	return s.session.Close()
}

// IsClosed 检查会话是否已关闭
func (s *YamuxSession) IsClosed() bool {
	return s.session.IsClosed()
}

// CloseChan 会话关闭时关闭的通道
func (s *YamuxSession) CloseChan() <-chan struct{} {
	return s.session.CloseChan()
}

// IsServer 返回是否是服务端
func (s *YamuxSession) IsServer() bool {
	return s.isServer
}
