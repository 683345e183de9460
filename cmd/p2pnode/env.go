package main

import (
	"strings"

	"github.com/dep2p/go-p2p-transport/config"
)

// 环境变量名
const (
	envPrefix      = "P2P_"
	envKind        = "TRANSPORT"
	envListenAddr  = "LISTEN_ADDR"
	envAdvertise   = "ADVERTISE_ADDRS"
	envKeyFile     = "IDENTITY_KEY_FILE"
	envPassphrase  = "IDENTITY_PASSPHRASE"
	envKnownPeers  = "KNOWN_PEERS"
	envMetricsAddr = "METRICS_ADDR"
)

// applyEnvOverrides 应用环境变量覆盖配置
//
// 支持的环境变量（均使用 P2P_ 前缀）：
//   - P2P_TRANSPORT: 传输后端
//   - P2P_LISTEN_ADDR: 监听地址
//   - P2P_ADVERTISE_ADDRS: 通告地址（逗号分隔）
//   - P2P_IDENTITY_KEY_FILE: 身份密钥文件
//   - P2P_IDENTITY_PASSPHRASE: 身份密钥口令
//   - P2P_KNOWN_PEERS: 已知节点地址（逗号分隔）
//   - P2P_METRICS_ADDR: 指标服务地址
func applyEnvOverrides(cfg *config.Config, getenv func(string) string) {
	if v := getenv(envPrefix + envKind); v != "" {
		cfg.Transport.Kind = v
	}
	if v := getenv(envPrefix + envListenAddr); v != "" {
		cfg.Transport.ListenAddr = v
	}
	if v := getenv(envPrefix + envAdvertise); v != "" {
		cfg.Transport.AdvertiseAddrs = splitAndTrim(v, ",")
	}
	if v := getenv(envPrefix + envKeyFile); v != "" {
		cfg.Identity.KeyFile = v
	}
	if v := getenv(envPrefix + envPassphrase); v != "" {
		cfg.Identity.Passphrase = v
	}
	if v := getenv(envPrefix + envKnownPeers); v != "" {
		cfg.KnownPeers = cfg.KnownPeers[:0]
		for _, addr := range splitAndTrim(v, ",") {
			cfg.KnownPeers = append(cfg.KnownPeers, config.KnownPeer{Addr: addr})
		}
	}
	if v := getenv(envPrefix + envMetricsAddr); v != "" {
		cfg.Metrics.ListenAddr = v
	}
}

// splitAndTrim 分割字符串并去除空白，丢弃空项
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
