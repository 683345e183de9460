package identity

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-p2p-transport/config"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// 配置（可选，使用默认配置）
	Config *config.Config `optional:"true"`
}

// ProvideIdentity 按配置加载或创建身份
func ProvideIdentity(input ModuleInput) (*Identity, error) {
	cfg := config.DefaultIdentityConfig()
	if input.Config != nil {
		cfg = input.Config.Identity
	}
	return LoadOrCreate(cfg)
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("identity",
		fx.Provide(ProvideIdentity),
	)
}
