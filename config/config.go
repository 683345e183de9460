// Package config 提供统一的配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义，
// 支持从 JSON 加载。
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Transport.Kind = config.TransportQUIC
//
//	// 从文件加载
//	cfg, err := config.LoadFile("node.json")
//
//	// 生成绑定参数
//	info, err := cfg.ToBindInfo(publicKey)
package config

import (
	"fmt"
	"net/netip"

	"github.com/dep2p/go-p2p-transport/pkg/types"
)

// KnownPeer 已知节点配置
//
// 启动时直接连接的节点，适用于已知节点地址的部署场景。
type KnownPeer struct {
	// PublicKey 目标节点的公钥（base58），仅用于日志标注，不做校验
	PublicKey string `json:"public_key,omitempty"`

	// Addr 目标节点地址，格式为 "ip:port"
	Addr string `json:"addr"`
}

// AddrPort 解析节点地址
func (p KnownPeer) AddrPort() (netip.AddrPort, error) {
	addr, err := netip.ParseAddrPort(p.Addr)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid known peer addr %q: %w", p.Addr, err)
	}
	if addr.Port() == 0 {
		return netip.AddrPort{}, fmt.Errorf("invalid known peer addr %q: port must be set", p.Addr)
	}
	return addr, nil
}

// Config 节点的完整配置结构
//
// 配置按照功能模块组织：
//   - Identity: 身份和密钥管理
//   - Transport: 传输后端与绑定参数
//   - Metrics: 指标导出
type Config struct {
	// Identity 身份配置
	Identity IdentityConfig `json:"identity"`

	// Transport 传输层配置
	Transport TransportConfig `json:"transport"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`

	// KnownPeers 已知节点列表
	KnownPeers []KnownPeer `json:"known_peers,omitempty"`
}

// NewConfig 创建默认配置
//
// 返回的配置使用所有组件的默认值，适用于大多数场景。
func NewConfig() *Config {
	return &Config{
		Identity:  DefaultIdentityConfig(),
		Transport: DefaultTransportConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// Validate 验证配置的有效性
//
// 建议在使用配置前调用此方法。
func (c *Config) Validate() error {
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	for _, p := range c.KnownPeers {
		if _, err := p.AddrPort(); err != nil {
			return err
		}
	}
	return nil
}

// ToBindInfo 根据传输配置生成绑定参数
func (c *Config) ToBindInfo(publicKey types.PublicKey) (types.BindInfo, error) {
	addr, err := c.Transport.ListenAddrPort()
	if err != nil {
		return types.BindInfo{}, err
	}
	advertise, err := c.Transport.AdvertiseAddrPorts()
	if err != nil {
		return types.BindInfo{}, err
	}

	info := types.BindInfo{
		Addr:           addr,
		AdvertiseAddrs: advertise,
		PublicKey:      publicKey,
	}
	if err := info.Validate(); err != nil {
		return types.BindInfo{}, err
	}
	return info, nil
}
