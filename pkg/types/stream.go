package types

import "fmt"

// ============================================================================
//                              StreamID - 逻辑流标识
// ============================================================================

// StreamID 连接内多路复用的逻辑流标识
//
// StreamID 不是网络地址，只是两端按协议约定的本地复用标签。
// 这是一个封闭集合，新增成员时在下方常量中追加即可，已有值不可重排。
// 零值无效。
type StreamID uint8

const (
	// StreamPex 节点交换（peer exchange）流
	StreamPex StreamID = iota + 1
)

// String 返回流标识名称
func (id StreamID) String() string {
	switch id {
	case StreamPex:
		return "pex"
	default:
		return fmt.Sprintf("stream(%d)", uint8(id))
	}
}

// IsValid 检查是否为已定义的流标识
func (id StreamID) IsValid() bool {
	return id == StreamPex
}

// ParseStreamID 从名称解析流标识
func ParseStreamID(name string) (StreamID, error) {
	switch name {
	case "pex":
		return StreamPex, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStreamID, name)
	}
}
