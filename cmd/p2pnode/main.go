// Package main 提供 p2pnode 命令行入口
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dep2p/go-p2p-transport/config"
	"github.com/dep2p/go-p2p-transport/internal/app"
	"github.com/dep2p/go-p2p-transport/pkg/lib/log"
)

var logger = log.Logger("cmd/p2pnode")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖 / 快速测试
//   JSON 配置文件：持久化配置（已知节点、超时、指标等）
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile   = flag.String("config", "", "配置文件路径（JSON）")
	preset       = flag.String("preset", "", "预设配置 (local/server)")
	kind         = flag.String("kind", "", "传输后端 (tcp/quic/mem)")
	listen       = flag.String("listen", "", "监听地址，例如 0.0.0.0:4001")
	identityFile = flag.String("identity", "", "身份密钥文件路径（PEM）")
	metricsAddr  = flag.String("metrics", "", "指标服务监听地址，为空时不启动")
	fxDebug      = flag.Bool("fx-debug", false, "输出 fx 依赖注入事件")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	// 日志级别与格式来自 P2P_LOG_LEVEL / P2P_LOG_FORMAT
	log.SetupFromEnv(os.Stderr)

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	logger.Info("启动节点",
		"kind", cfg.Transport.Kind,
		"listenAddr", cfg.Transport.ListenAddr,
		"knownPeers", len(cfg.KnownPeers))

	build := app.DefaultBuildOptions()
	build.FxEvents = *fxDebug

	a, err := app.RunApp(context.Background(), app.NewBootstrap(
		app.WithConfig(cfg),
		app.WithBuildOptions(build),
	))
	if err != nil {
		return err
	}

	rt := a.Runtime()
	fmt.Printf("节点已启动\n  公钥: %s\n  监听: %s\n按 Ctrl+C 退出\n",
		rt.Identity.PublicKey(), rt.Node.ListenAddr())

	return a.Wait()
}

// buildConfig 构建配置
//
// 优先级（从高到低）：
//  1. 命令行参数
//  2. 环境变量（P2P_* 前缀）
//  3. 预设
//  4. 配置文件
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}

	if err := config.ApplyPreset(cfg, *preset); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg, os.Getenv)

	if *kind != "" {
		cfg.Transport.Kind = *kind
	}
	if *listen != "" {
		cfg.Transport.ListenAddr = *listen
	}
	if *identityFile != "" {
		cfg.Identity.KeyFile = *identityFile
	}
	if isFlagSet("metrics") {
		cfg.Metrics.ListenAddr = *metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
