package types

import "errors"

var (
	// ErrAcceptTerminated 入站序列已终止
	//
	// 这是终止信号而不是瞬时错误：监听器已经不存在，
	// 调用方应停止接受循环并关闭或重建协议实例，不应重试。
	ErrAcceptTerminated = errors.New("accept stream terminated, listener likely gone")

	// ErrInvalidBindAddr 绑定地址无效
	ErrInvalidBindAddr = errors.New("invalid bind address")

	// ErrInvalidAdvertiseAddr 通告地址无效
	ErrInvalidAdvertiseAddr = errors.New("invalid advertise address")

	// ErrInvalidStreamID 无效的流标识
	ErrInvalidStreamID = errors.New("invalid stream ID")

	// ErrInvalidPublicKey 无效的公钥
	ErrInvalidPublicKey = errors.New("invalid public key")
)
