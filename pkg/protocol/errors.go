package protocol

import (
	"errors"

	"github.com/dep2p/go-p2p-transport/pkg/types"
)

var (
	// ErrProtocolConsumed 实例已被状态转换消耗
	//
	// 成功的 Start 会消耗 Stopped 实例，Stop 会消耗 Running 实例，
	// 之后应使用转换返回的新实例。
	ErrProtocolConsumed = errors.New("protocol instance consumed by state transition")

	// ErrAcceptTerminated 入站序列已终止，见 types.ErrAcceptTerminated
	ErrAcceptTerminated = types.ErrAcceptTerminated
)
