package types

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKey 节点身份公钥
//
// 以 Base58 文本保存 ed25519 公钥。核心层只传递该值，
// 不做任何密码学验证。
type PublicKey string

// PublicKeyFromEd25519 从 ed25519 公钥创建 PublicKey
func PublicKeyFromEd25519(pub ed25519.PublicKey) PublicKey {
	return PublicKey(base58.Encode(pub))
}

// Ed25519 解码为 ed25519 公钥
func (k PublicKey) Ed25519() (ed25519.PublicKey, error) {
	raw, err := base58.Decode(string(k))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidPublicKey, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// IsEmpty 检查公钥是否为空
func (k PublicKey) IsEmpty() bool {
	return k == ""
}

// String 返回公钥文本
func (k PublicKey) String() string {
	return string(k)
}

// ShortString 返回用于日志的截断形式
func (k PublicKey) ShortString() string {
	if len(k) <= 8 {
		return string(k)
	}
	return string(k[:8])
}
