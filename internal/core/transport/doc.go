// Package transport 按配置选择传输后端
//
// 后端实现位于子包：
//
//   - tcp: TCP + yamux，hello 交换后按 StreamID 路由逻辑流
//   - quic: 共享 UDP socket 的 QUIC，原生多路复用
//   - mem: 进程内网络，测试与本地演示使用
//
// 节点同一时间只运行一个后端。具体类型各不相同，New 通过
// transportif.Erase 把它们统一为 transportif.Dynamic，
// 上层用同一个 protocol 实例化驱动。
//
// # Fx 模块集成
//
//	app := fx.New(
//	    fx.Supply(config.NewConfig()),
//	    identity.Module(),
//	    transport.Module(),
//	    fx.Invoke(func(t transportif.Dynamic) {
//	        stopped := protocol.New(t)
//	    }),
//	)
//
// 架构层：Core Layer
// 公共接口：pkg/interfaces/transport
package transport
