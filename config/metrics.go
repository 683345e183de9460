package config

import (
	"errors"
	"fmt"
	"net/netip"
)

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 是否启用 Prometheus 指标
	Enabled bool `json:"enabled"`

	// ListenAddr 指标 HTTP 服务地址，为空时只采集不导出
	ListenAddr string `json:"listen_addr,omitempty"`

	// Namespace 指标名前缀
	Namespace string `json:"namespace"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:    true,
		ListenAddr: "",
		Namespace:  "p2p",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Namespace == "" {
		return errors.New("metrics namespace must not be empty")
	}
	if c.ListenAddr != "" {
		if _, err := netip.ParseAddrPort(c.ListenAddr); err != nil {
			return fmt.Errorf("invalid metrics listen addr %q: %w", c.ListenAddr, err)
		}
	}
	return nil
}
