package config

import (
	"errors"
	"fmt"
	"net/netip"
	"time"
)

// 传输后端类型
const (
	// TransportTCP TCP + yamux
	TransportTCP = "tcp"

	// TransportQUIC QUIC（共享 UDP socket）
	TransportQUIC = "quic"

	// TransportMem 进程内传输，仅用于测试与本地演示
	TransportMem = "mem"
)

// TransportConfig 传输层配置
//
// 节点同一时间只运行一种传输后端：
//   - tcp: 兼容性好，多路复用由 yamux 提供
//   - quic: 基于 UDP，原生多路复用
//   - mem: 进程内管道
type TransportConfig struct {
	// Kind 传输后端类型
	Kind string `json:"kind"`

	// ListenAddr 本地绑定地址，端口为 0 时由系统分配
	ListenAddr string `json:"listen_addr"`

	// AdvertiseAddrs 向对端通告的地址（有序）
	AdvertiseAddrs []string `json:"advertise_addrs,omitempty"`

	// HandshakeTimeout 连接握手（hello 交换）超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// DialTimeout 拨号超时
	DialTimeout Duration `json:"dial_timeout"`

	// TCP 配置
	TCP TCPConfig `json:"tcp,omitempty"`

	// QUIC 配置
	QUIC QUICConfig `json:"quic,omitempty"`

	// Muxer 流多路复用配置
	Muxer MuxerConfig `json:"muxer,omitempty"`
}

// TCPConfig TCP 传输配置
type TCPConfig struct {
	// KeepAlivePeriod KeepAlive 周期，0 表示禁用
	KeepAlivePeriod Duration `json:"keep_alive_period"`

	// NoDelay 是否禁用 Nagle 算法
	NoDelay bool `json:"no_delay"`
}

// QUICConfig QUIC 传输配置
type QUICConfig struct {
	// MaxIdleTimeout 最大空闲超时
	MaxIdleTimeout Duration `json:"max_idle_timeout"`

	// KeepAlivePeriod KeepAlive 周期
	KeepAlivePeriod Duration `json:"keep_alive_period"`

	// MaxStreams 对端可同时打开的流数量
	MaxStreams int `json:"max_streams"`
}

// MuxerConfig 流多路复用配置
type MuxerConfig struct {
	// MaxStreamWindowSize yamux 流窗口大小
	MaxStreamWindowSize uint32 `json:"max_stream_window_size"`

	// KeepAliveInterval yamux 保活间隔
	KeepAliveInterval Duration `json:"keep_alive_interval"`

	// EnableKeepAlive 是否启用 yamux 保活
	EnableKeepAlive bool `json:"enable_keep_alive"`

	// MaxPendingPerStream 每个 StreamID 上等待认领的入站流上限
	MaxPendingPerStream int `json:"max_pending_per_stream"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Kind:             TransportTCP,               // 默认 TCP：无需额外端口放行
		ListenAddr:       "0.0.0.0:4001",             // 默认监听所有 IPv4 接口
		HandshakeTimeout: Duration(10 * time.Second), // hello 交换超时：10 秒
		DialTimeout:      Duration(30 * time.Second), // 拨号超时：30 秒
		TCP: TCPConfig{
			KeepAlivePeriod: Duration(15 * time.Second), // KeepAlive 间隔：15 秒
			NoDelay:         true,                       // 禁用 Nagle 算法：减少延迟
		},
		QUIC: QUICConfig{
			MaxIdleTimeout:  Duration(6 * time.Second), // 空闲超时：6 秒，快速断开检测
			KeepAlivePeriod: Duration(3 * time.Second), // KeepAlive 间隔：3 秒
			MaxStreams:      1024,                      // 最大并发流：1024
		},
		Muxer: MuxerConfig{
			MaxStreamWindowSize: 256 * 1024,                 // 流窗口：256 KB
			KeepAliveInterval:   Duration(30 * time.Second), // 保活间隔：30 秒
			EnableKeepAlive:     true,
			MaxPendingPerStream: 16, // 未被认领的入站流上限
		},
	}
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	switch c.Kind {
	case TransportTCP, TransportQUIC, TransportMem:
	default:
		return fmt.Errorf("invalid transport kind %q: must be tcp, quic or mem", c.Kind)
	}

	if _, err := c.ListenAddrPort(); err != nil {
		return err
	}
	if _, err := c.AdvertiseAddrPorts(); err != nil {
		return err
	}

	if c.HandshakeTimeout <= 0 {
		return errors.New("handshake timeout must be positive")
	}
	if c.DialTimeout <= 0 {
		return errors.New("dial timeout must be positive")
	}

	if c.Kind == TransportQUIC {
		if c.QUIC.MaxIdleTimeout <= 0 {
			return errors.New("QUIC max idle timeout must be positive")
		}
		if c.QUIC.MaxStreams <= 0 {
			return errors.New("QUIC max streams must be positive")
		}
	}

	if c.Muxer.MaxPendingPerStream <= 0 {
		return errors.New("muxer max pending per stream must be positive")
	}
	if c.Kind != TransportQUIC && c.Muxer.MaxStreamWindowSize < 256*1024 {
		return errors.New("muxer max stream window size must be at least 256KB")
	}

	return nil
}

// ListenAddrPort 解析本地绑定地址
func (c TransportConfig) ListenAddrPort() (netip.AddrPort, error) {
	addr, err := netip.ParseAddrPort(c.ListenAddr)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid listen addr %q: %w", c.ListenAddr, err)
	}
	return addr, nil
}

// AdvertiseAddrPorts 解析通告地址
func (c TransportConfig) AdvertiseAddrPorts() ([]netip.AddrPort, error) {
	addrs := make([]netip.AddrPort, 0, len(c.AdvertiseAddrs))
	for _, s := range c.AdvertiseAddrs {
		addr, err := netip.ParseAddrPort(s)
		if err != nil {
			return nil, fmt.Errorf("invalid advertise addr %q: %w", s, err)
		}
		if addr.Port() == 0 {
			return nil, fmt.Errorf("invalid advertise addr %q: port must be set", s)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// WithKind 设置传输后端
func (c TransportConfig) WithKind(kind string) TransportConfig {
	c.Kind = kind
	return c
}

// WithListenAddr 设置本地绑定地址
func (c TransportConfig) WithListenAddr(addr string) TransportConfig {
	c.ListenAddr = addr
	return c
}

// WithDialTimeout 设置拨号超时
func (c TransportConfig) WithDialTimeout(timeout time.Duration) TransportConfig {
	c.DialTimeout = Duration(timeout)
	return c
}
