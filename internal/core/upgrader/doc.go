// Package upgrader 将原始字节流连接升级为可复用的 Connection
//
// 升级流程：
//  1. hello 交换（公钥与通告地址，不验证）
//  2. 建立 yamux 会话（入站为服务端）
//  3. 启动 StreamID 路由
//
// TCP 与内存传输共用本包；QUIC 自带多路复用，不经过这里。
package upgrader
