package quic

import (
	"context"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-p2p-transport/internal/core/muxer"
)

// stream 为 QUIC 流补充单独关闭读方向的能力
type stream struct {
	quic.Stream
}

// CloseRead 放弃读取剩余数据
func (s *stream) CloseRead() error {
	s.CancelRead(0)
	return nil
}

// session 将 quic.Connection 适配为 muxer.Session
type session struct {
	conn quic.Connection
}

var _ muxer.Session[*stream] = (*session)(nil)

func (s *session) OpenStream(ctx context.Context) (*stream, error) {
	st, err := s.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return &stream{Stream: st}, nil
}

func (s *session) AcceptStream(ctx context.Context) (*stream, error) {
	st, err := s.conn.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return &stream{Stream: st}, nil
}

func (s *session) Close() error {
	return s.conn.CloseWithError(0, "")
}
