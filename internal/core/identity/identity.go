package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/dep2p/go-p2p-transport/config"
	"github.com/dep2p/go-p2p-transport/pkg/lib/log"
	"github.com/dep2p/go-p2p-transport/pkg/types"
)

var logger = log.Logger("core/identity")

// ============================================================================
//                              Identity 实现
// ============================================================================

// Identity 节点身份
type Identity struct {
	privateKey ed25519.PrivateKey
	publicKey  types.PublicKey
}

// Generate 生成新的 Ed25519 身份
func Generate() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToGenerateKey, err)
	}
	return New(priv)
}

// New 从私钥创建身份
func New(priv ed25519.PrivateKey) (*Identity, error) {
	if priv == nil {
		return nil, ErrNilPrivateKey
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key size %d", ErrUnsupportedKeyType, len(priv))
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{
		privateKey: priv,
		publicKey:  types.PublicKeyFromEd25519(pub),
	}, nil
}

// PublicKey 返回公钥
func (i *Identity) PublicKey() types.PublicKey {
	return i.publicKey
}

// PrivateKey 返回私钥
func (i *Identity) PrivateKey() ed25519.PrivateKey {
	return i.privateKey
}

// Sign 签名数据
func (i *Identity) Sign(data []byte) []byte {
	return ed25519.Sign(i.privateKey, data)
}

// Verify 使用 pub 验证签名，公钥无法解码时返回 false
func Verify(pub types.PublicKey, data, signature []byte) bool {
	key, err := pub.Ed25519()
	if err != nil || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(key, data, signature)
}

// LoadOrCreate 按配置加载或创建身份
//
// 优先级：KeyFile 存在则加载；不存在且 AutoGenerate 时生成并保存；
// KeyFile 为空时生成临时身份。Passphrase 非空时密钥文件加密存储。
func LoadOrCreate(cfg config.IdentityConfig) (*Identity, error) {
	keyFile := cfg.KeyFile
	passphrase := []byte(cfg.Passphrase)

	if keyFile == "" {
		if !cfg.AutoGenerate {
			return nil, ErrKeyNotFound
		}
		id, err := Generate()
		if err != nil {
			return nil, err
		}
		logger.Info("使用临时身份", "publicKey", id.PublicKey().ShortString())
		return id, nil
	}

	id, err := Load(keyFile, passphrase)
	if err == nil {
		logger.Info("身份已加载", "path", keyFile, "publicKey", id.PublicKey().ShortString())
		return id, nil
	}
	if !errors.Is(err, ErrKeyNotFound) || !cfg.AutoGenerate {
		return nil, fmt.Errorf("加载身份失败: %w", err)
	}

	id, err = Generate()
	if err != nil {
		return nil, fmt.Errorf("创建身份失败: %w", err)
	}
	if err := SavePrivateKeyPEM(id.PrivateKey(), keyFile, passphrase); err != nil {
		// 保存失败不影响运行，下次启动会得到新身份
		logger.Warn("保存身份失败", "path", keyFile, "error", err)
	} else {
		logger.Info("已生成新身份", "path", keyFile, "publicKey", id.PublicKey().ShortString())
	}
	return id, nil
}
