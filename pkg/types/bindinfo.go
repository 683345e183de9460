package types

import (
	"fmt"
	"net/netip"
	"slices"
)

// BindInfo 绑定参数
//
// 调用方创建后一次性交给 Start，之后不再修改。
type BindInfo struct {
	// Addr 本地绑定地址（端口为 0 时由系统分配）
	Addr netip.AddrPort

	// AdvertiseAddrs 向对端通告的地址列表（有序）
	AdvertiseAddrs []netip.AddrPort

	// PublicKey 本节点身份公钥
	PublicKey PublicKey
}

// Clone 返回深拷贝
func (b BindInfo) Clone() BindInfo {
	b.AdvertiseAddrs = slices.Clone(b.AdvertiseAddrs)
	return b
}

// Validate 验证绑定参数
//
// 公钥允许为空，是否接受空身份由具体传输决定。
func (b BindInfo) Validate() error {
	if !b.Addr.IsValid() {
		return ErrInvalidBindAddr
	}
	for i, addr := range b.AdvertiseAddrs {
		if !addr.IsValid() || addr.Port() == 0 {
			return fmt.Errorf("%w: index %d", ErrInvalidAdvertiseAddr, i)
		}
	}
	return nil
}
