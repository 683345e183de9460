// Package transport 定义传输层能力契约
//
// 核心层只消费这些接口，不关心具体网络实现（TCP、QUIC、内存测试替身等）。
//   - Connection: 一条已建立、可多路复用的对端链路
//   - Endpoint: 本地拨号设施，产生 Connection
//   - Transport: 工厂，绑定后产生一个 Endpoint 和一个入站序列
//
// 所有阻塞操作的解除由实现方控制：关闭监听套接字会让入站序列结束，
// 从而唤醒正在等待的 Accept。核心层不提供超时，取消信号通过 ctx 交给实现方。
package transport

import (
	"context"
	"io"
	"net/netip"

	"github.com/dep2p/go-p2p-transport/pkg/types"
)

// ============================================================================
//                              Connection 接口
// ============================================================================

// Connection 单个对端的已建立链路
//
// # 资源释放
//
// Go 没有确定性析构，因此释放契约是显式的：
//   - 持有者必须在每条退出路径（包括错误路径）上调用 Close，推荐使用 peer.Scoped
//   - Close 对调用方幂等，可在仍有打开的流时调用
//   - Transport.Shutdown 释放其产生且仍未关闭的所有 Connection
//
// 不允许依赖 finalizer 释放底层套接字。
type Connection interface {
	// AdvertisedAddrs 返回对端通告的地址列表（有序），无副作用
	AdvertisedAddrs() []netip.AddrPort

	// LocalAddr 返回本端地址，在连接生命周期内不变
	LocalAddr() netip.AddrPort

	// RemoteAddr 返回对端地址，在连接生命周期内不变
	RemoteAddr() netip.AddrPort

	// PublicKey 返回对端声明的身份公钥（未做密码学验证）
	PublicKey() types.PublicKey

	// OpenBidirectional 在此连接内按 StreamID 打开一对读写通道
	//
	// 同一连接上可以并发打开不同的 StreamID。
	// 重复打开同一 StreamID 的行为由实现方定义并在实现中写明。
	// 链路已关闭等情况返回实现方定义的错误。
	OpenBidirectional(ctx context.Context, id types.StreamID) (io.ReadCloser, io.WriteCloser, error)

	// Close 提前释放链路
	Close() error
}

// ============================================================================
//                              Endpoint 接口
// ============================================================================

// Endpoint 本地拨号设施
type Endpoint[C Connection] interface {
	// Connect 拨号到指定地址并返回连接（阻塞）
	//
	// 失败时返回实现方定义的错误（不可达、拒绝、超时等）。
	Connect(ctx context.Context, addr netip.AddrPort) (C, error)

	// ListenAddr 返回此 Endpoint 绑定的本地地址
	ListenAddr() netip.AddrPort
}

// ============================================================================
//                              Incoming 序列
// ============================================================================

// Incoming 入站连接的惰性单游标序列
//
// 每一项为 (conn, nil) 表示一个新连接，(零值, err) 表示单个连接的瞬时失败，
// 序列返回即表示已终止（监听器已关闭）。序列只能前进，不能回退。
//
// 与 iter.Seq2[C, error] 底层类型相同，可直接用于 range 或 iter.Pull2。
type Incoming[C Connection] func(yield func(C, error) bool)

// ============================================================================
//                              Transport 接口
// ============================================================================

// Transport 传输工厂
//
// Bind 对同一底层资源只应调用一次；类型系统不阻止重复调用，
// 但协议状态机保证只从 Stopped 状态调用。
type Transport[C Connection, E Endpoint[C]] interface {
	// Bind 绑定资源，返回 Endpoint 与入站序列
	Bind(ctx context.Context, info types.BindInfo) (E, Incoming[C], error)

	// Shutdown 释放 Bind 分配的资源
	//
	// 关闭监听套接字后，未完成的入站拉取会观察到序列终止。
	Shutdown() error
}
