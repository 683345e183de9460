// Package mem 实现进程内传输
//
// 多个 Transport 共享一个 Network，按 ip:port 互相寻址；每条链路是一对
// net.Pipe，之后的 hello 交换与 yamux 复用和 TCP 完全相同。
// 用于集成测试与 "mem" 传输类型。
package mem
