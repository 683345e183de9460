package types

// ============================================================================
//                              Direction - 连接方向
// ============================================================================

// Direction 连接方向
//
// 记录连接是由接受（入站）还是拨号（出站）产生的。
// 零值表示未知方向，只会出现在未初始化的值上。
type Direction int

const (
	// DirInbound 入站连接（由 Accept 产生）
	DirInbound Direction = iota + 1
	// DirOutbound 出站连接（由 Connect 产生）
	DirOutbound
)

// String 返回方向的字符串表示
func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// IsValid 检查方向是否为已定义的值
func (d Direction) IsValid() bool {
	return d == DirInbound || d == DirOutbound
}
