package identity

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// PEM 类型常量
const (
	pemTypePrivate   = "PRIVATE KEY"
	pemTypeEncrypted = "P2P ENCRYPTED PRIVATE KEY"
	pemTypePublic    = "PUBLIC KEY"
)

// ============================================================================
//                              私钥持久化
// ============================================================================

// SavePrivateKeyPEM 以 PKCS#8 PEM 保存私钥
//
// passphrase 非空时，PKCS#8 数据经 Argon2id + AES-GCM 加密后写入。
// 使用原子写操作（临时文件 + rename）防止部分写入导致的文件损坏。
// 文件权限设置为 0600，仅所有者可读写。
func SavePrivateKeyPEM(key ed25519.PrivateKey, path string, passphrase []byte) error {
	data, err := MarshalPrivateKeyPEM(key, passphrase)
	if err != nil {
		return err
	}
	return atomicWriteFile(path, data, 0600)
}

// MarshalPrivateKeyPEM 编码私钥，passphrase 非空时加密
func MarshalPrivateKeyPEM(key ed25519.PrivateKey, passphrase []byte) ([]byte, error) {
	if key == nil {
		return nil, ErrNilPrivateKey
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("编码私钥失败: %w", err)
	}
	if len(passphrase) == 0 {
		return pem.EncodeToMemory(&pem.Block{Type: pemTypePrivate, Bytes: der}), nil
	}

	sealed, err := encryptKey(der, passphrase)
	if err != nil {
		return nil, fmt.Errorf("加密私钥失败: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypeEncrypted, Bytes: sealed}), nil
}

// LoadPrivateKeyPEM 从 PEM 文件加载私钥
func LoadPrivateKeyPEM(path string, passphrase []byte) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: 密钥路径来自配置
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return ParsePrivateKeyPEM(data, passphrase)
}

// ParsePrivateKeyPEM 解析 PKCS#8 PEM 私钥
//
// 加密的 PEM 需要 passphrase；未加密的 PEM 忽略 passphrase。
func ParsePrivateKeyPEM(data, passphrase []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEM
	}

	der := block.Bytes
	switch block.Type {
	case pemTypePrivate:
	case pemTypeEncrypted:
		if len(passphrase) == 0 {
			return nil, ErrPassphraseRequired
		}
		plain, err := decryptKey(block.Bytes, passphrase)
		if err != nil {
			return nil, err
		}
		der = plain
	default:
		return nil, ErrInvalidPEM
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPEM, err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, key)
	}
	return priv, nil
}

// Load 从 PEM 文件加载身份
func Load(path string, passphrase []byte) (*Identity, error) {
	priv, err := LoadPrivateKeyPEM(path, passphrase)
	if err != nil {
		return nil, err
	}
	return New(priv)
}

// ============================================================================
//                              公钥导出
// ============================================================================

// MarshalPublicKeyPEM 以 PKIX PEM 编码公钥
func MarshalPublicKeyPEM(pub ed25519.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("编码公钥失败: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePublic, Bytes: der}), nil
}

// ============================================================================
//                              原子写操作
// ============================================================================

// atomicWriteFile 原子写文件
//
// 写入同目录临时文件，同步后 rename 到目标路径。
// 任何步骤失败时目标文件保持不变。
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("同步临时文件失败: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("设置文件权限失败: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("原子 rename 失败: %w", err)
	}

	success = true
	return nil
}
