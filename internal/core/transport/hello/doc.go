// Package hello 实现连接建立后的身份与通告地址交换
//
// 双方各自发送一条 hello 消息并接收对端的消息，发送与接收并发进行，
// 因此同步管道（如 net.Pipe）上也不会互相等待。
//
// 帧格式：
//
//	[uvarint 长度][protobuf structpb.Struct]
//
// 消息字段：
//   - public_key：string，base58 编码的公钥
//   - advertise_addrs：list<string>，ip:port
//
// 交换不做任何验证，公钥只是对端的声明。
package hello
