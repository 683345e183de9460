package upgrader

import (
	"time"

	"github.com/dep2p/go-p2p-transport/internal/core/muxer"
)

// Config 升级器配置
type Config struct {
	// HandshakeTimeout hello 交换超时（默认 10s）
	HandshakeTimeout time.Duration

	// Muxer 多路复用配置
	Muxer muxer.Config
}

// NewConfig 创建默认配置
func NewConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		Muxer:            muxer.DefaultConfig(),
	}
}
