// Package identity 实现节点身份管理
//
// 节点身份是一把 Ed25519 密钥。公钥以 base58 编码作为 types.PublicKey
// 写入 BindInfo，在 hello 交换中发送给对端；私钥用于 QUIC 自签名证书。
//
// # 快速开始
//
//	// 生成新身份
//	id, _ := identity.Generate()
//
//	// 保存与加载（口令为空时不加密）
//	_ = identity.SavePrivateKeyPEM(id.PrivateKey(), "node.key", passphrase)
//	id, _ = identity.Load("node.key", passphrase)
//
//	// 签名和验证
//	sig := id.Sign(data)
//	ok := identity.Verify(id.PublicKey(), data, sig)
//
// # Fx 模块集成
//
//	app := fx.New(
//	    fx.Supply(config.NewConfig()),
//	    identity.Module(),
//	)
package identity
