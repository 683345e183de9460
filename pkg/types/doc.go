// Package types 定义传输生命周期核心的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - bindinfo.go  - BindInfo 绑定参数
//   - publickey.go - PublicKey 节点身份公钥（Base58 文本）
//   - stream.go    - StreamID 逻辑流标识
//   - enums.go     - Direction 连接方向
//   - errors.go    - 公共错误定义
//
// # 地址表示
//
// 所有套接字地址统一使用 netip.AddrPort，值类型、可比较、无需分配。
package types
