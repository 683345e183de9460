package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNegativeDuration 超时与周期不能为负
var ErrNegativeDuration = errors.New("duration must not be negative")

// Duration 配置中的超时与周期
//
// JSON 中写作字符串（"10s"、"1m30s"）或纳秒整数。
// 空字符串与 0 表示零值（如禁用 KeepAlive），null 保留默认值，负数被拒绝。
//
//	{"transport": {"dial_timeout": "30s", "tcp": {"keep_alive_period": ""}}}
type Duration time.Duration

// UnmarshalJSON 解析字符串或纳秒整数
func (d *Duration) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var parsed time.Duration
	switch {
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != "" {
			v, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", s, err)
			}
			parsed = v
		}
	default:
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("duration must be a string such as \"10s\" or integer nanoseconds, got %s", data)
		}
		parsed = time.Duration(n)
	}

	if parsed < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeDuration, parsed)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON 输出为字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Duration 底层的 time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
