package identity

import "errors"

var (
	// ErrInvalidPEM 无效的 PEM 数据
	ErrInvalidPEM = errors.New("invalid PEM data")

	// ErrUnsupportedKeyType 不支持的密钥类型
	ErrUnsupportedKeyType = errors.New("unsupported key type")

	// ErrKeyNotFound 密钥未找到
	ErrKeyNotFound = errors.New("key not found")

	// ErrNilPrivateKey 私钥为 nil
	ErrNilPrivateKey = errors.New("private key is nil")

	// ErrFailedToGenerateKey 密钥生成失败
	ErrFailedToGenerateKey = errors.New("failed to generate key")

	// ErrPassphraseRequired 密钥文件已加密但未提供口令
	ErrPassphraseRequired = errors.New("passphrase required for encrypted key")

	// ErrDecryptionFailed 解密失败（口令错误或数据损坏）
	ErrDecryptionFailed = errors.New("decryption failed")
)
