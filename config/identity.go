package config

import (
	"errors"
)

// IdentityConfig 身份配置
//
// 节点身份固定为 Ed25519 密钥。
type IdentityConfig struct {
	// KeyFile 密钥文件路径（PEM）
	// 如果为空，将在内存中生成临时密钥
	KeyFile string `json:"key_file"`

	// AutoGenerate 当密钥文件不存在时是否自动生成并保存
	AutoGenerate bool `json:"auto_generate"`

	// Passphrase 密钥文件口令，非空时密钥以 Argon2id + AES-GCM 加密存储
	Passphrase string `json:"passphrase,omitempty"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		KeyFile:      "",   // 默认空：内存中生成临时密钥
		AutoGenerate: true, // 默认启用：KeyFile 不存在时生成新密钥
	}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	if c.KeyFile == "" && !c.AutoGenerate {
		return errors.New("identity key file is required when auto generate is disabled")
	}
	return nil
}

// WithKeyFile 设置密钥文件路径
func (c IdentityConfig) WithKeyFile(path string) IdentityConfig {
	c.KeyFile = path
	return c
}

// WithPassphrase 设置密钥文件口令
func (c IdentityConfig) WithPassphrase(passphrase string) IdentityConfig {
	c.Passphrase = passphrase
	return c
}

// WithAutoGenerate 设置是否自动生成密钥
func (c IdentityConfig) WithAutoGenerate(auto bool) IdentityConfig {
	c.AutoGenerate = auto
	return c
}
