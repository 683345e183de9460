// Package tcp 实现 TCP 传输层
//
// 每条 TCP 连接建立后依次执行 hello 交换与 yamux 会话建立，
// 之后按 StreamID 打开逻辑流。
//
// # 使用示例
//
//	t := tcp.NewTransport(tcp.NewConfig())
//	ep, incoming, err := t.Bind(ctx, types.BindInfo{Addr: addr, PublicKey: key})
//
//	// 拨号
//	conn, err := ep.Connect(ctx, remote)
//
//	// 入站
//	for conn, err := range incoming { ... }
//
//	// 关闭后可以重新 Bind
//	err = t.Shutdown()
//
// # 逻辑流
//
// 同一 StreamID 打开两次得到两组独立通道，与对端按打开顺序配对。
package tcp
