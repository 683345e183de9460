// Package muxer 在一条连接上按 StreamID 复用逻辑流
//
// 连接建立后，双方各自持有一个 Router。打开逻辑流时：
//   - 写端：本地新开一条底层流，先写入 varint 编码的 StreamID 头部
//   - 读端：对端为同一 StreamID 打开的下一条底层流
//
// 两端对称，没有主从之分。对同一 StreamID 打开两次会得到两组独立的
// 通道，按打开顺序与对端的流一一配对（FIFO）。未知 StreamID 的入站流
// 会被直接关闭。
//
// 底层会话抽象为 Session，当前有两种实现：
//   - yamux（TCP 与内存传输使用）
//   - QUIC 原生流（见 transport/quic）
//
// # 快速开始
//
//	sess, _ := muxer.NewYamuxSession(conn, isServer, muxer.DefaultConfig())
//	router := muxer.NewRouter[*yamux.Stream](sess)
//	defer router.Close()
//
//	r, w, _ := router.OpenBidirectional(ctx, types.StreamPex)
//	defer r.Close()
//	defer w.Close()
//
// # 并发安全
//
// OpenBidirectional 可以并发调用；返回的读端与写端各自只能由一个
// goroutine 使用。
package muxer
