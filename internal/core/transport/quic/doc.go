// Package quic 实现 QUIC 传输层
//
// 监听与拨号共用一个 UDP socket（quic.Transport），出站连接的源端口
// 与监听端口一致。
//
// 连接建立后：
//  1. 拨号方打开第一条流，双方在该流上完成 hello 交换
//  2. 之后的流都按 StreamID 路由，直接使用 QUIC 原生流，不经过 yamux
//
// TLS 使用节点 ed25519 私钥自签名的证书，只保证链路加密，
// 不把证书与 hello 中声明的公钥绑定。
package quic
