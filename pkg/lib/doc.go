// Package lib 包含基础设施工具库
//
// 本目录包含与架构组件无关的通用工具库：
//
//   - log: 基于 log/slog 的分组件日志封装
//
// # 与 pkg/ 其他目录的关系
//
// pkg/ 目录包含以下内容：
//
//   - interfaces/: 传输能力契约（架构核心）
//   - protocol/: 协议状态机
//   - peer/: 已建立连接的所有权封装
//   - types/: 公共类型定义
//   - lib/: 基础设施工具库（本目录）
//
// # 使用示例
//
//	import "github.com/dep2p/go-p2p-transport/pkg/lib/log"
//
//	var logger = log.Logger("core/transport/tcp")
package lib
