package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "identity": {"key_file": "node.key"},
//	  "transport": {"kind": "quic", "listen_addr": "0.0.0.0:4001"},
//	  "known_peers": [{"addr": "203.0.113.7:4001"}]
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置并验证
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "local": 进程内传输，回环地址，不导出指标
//   - "server": QUIC，监听所有接口
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch presetName {
	case "local":
		cfg.Transport.Kind = TransportMem
		cfg.Transport.ListenAddr = "127.0.0.1:0"
		cfg.Metrics.ListenAddr = ""
		return nil
	case "server":
		cfg.Transport.Kind = TransportQUIC
		cfg.Transport.ListenAddr = "0.0.0.0:4001"
		return nil
	case "":
		// 空预设，不做任何操作
		return nil
	default:
		return fmt.Errorf("unknown preset: %s", presetName)
	}
}

// CloneConfig 克隆配置
//
// 创建配置的深拷贝，用于安全地修改配置而不影响原始配置。
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}

	cloned := *cfg
	cloned.Transport.AdvertiseAddrs = slices.Clone(cfg.Transport.AdvertiseAddrs)
	cloned.KnownPeers = slices.Clone(cfg.KnownPeers)
	return &cloned
}
