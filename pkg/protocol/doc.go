// Package protocol 实现传输生命周期状态机
//
// Protocol 拥有一个 Transport，并按生命周期阶段暴露不同的操作：
//
//	New(transport)          → *Stopped
//	(*Stopped).Start(info)  → *Running   调用一次 Transport.Bind
//	(*Running).Accept()     → 入站 Peer   推进入站序列游标
//	(*Running).Connect(...) → 出站 Peer   调用 Endpoint.Connect
//	(*Running).Stop()       → *Stopped   调用一次 Transport.Shutdown
//
// # 类型状态
//
// 每个状态是独立的具体类型，操作可用性由方法集在编译期决定：
// Stopped 没有 Accept / Connect / Stop，Running 没有 Start。
//
// 状态转换会消耗原实例。Go 无法在编译期禁止继续使用旧值，
// 因此被消耗的实例在运行期返回 ErrProtocolConsumed，永远不会 panic。
//
// # 失败语义
//
//   - Start 绑定失败：Stopped 实例不被消耗，Transport 仍归调用方，可直接重试
//   - Stop 关闭失败：Running 的负载照常丢弃，仍返回新的 Stopped 与错误
//   - Accept 单项失败：原样返回，序列未结束
//   - Accept 序列结束：返回 ErrAcceptTerminated，此后每次调用都返回该错误
//   - Connect 失败：原样返回
//
// 本包不做重试、退避或超时，所有失败原样交给直接调用方。
//
// # 并发
//
// Accept 需要独占入站游标，内部串行化：同一实例同时只有一个 Accept 在拉取。
// 需要并发接受时，应由单一接受循环统一分发。
// Connect 只需共享访问，可与自身及 Accept 并发调用，前提是 Endpoint 实现支持并发拨号。
//
// Running 实例必须通过 Stop 释放；直接丢弃会泄漏监听资源。
package protocol
