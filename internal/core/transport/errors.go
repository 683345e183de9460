package transport

import "errors"

// ErrUnknownKind 未知的传输后端
var ErrUnknownKind = errors.New("unknown transport kind")
