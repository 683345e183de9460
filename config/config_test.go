package config

import (
	"encoding/json"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2p-transport/pkg/types"
)

// TestNewConfig 测试创建默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	// 验证默认配置有效
	err := cfg.Validate()
	assert.NoError(t, err)

	assert.Equal(t, TransportTCP, cfg.Transport.Kind)
	assert.True(t, cfg.Identity.AutoGenerate)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Empty(t, cfg.KnownPeers)

	t.Log("✅ NewConfig 测试通过")
}

// TestIdentityConfig 测试身份配置
func TestIdentityConfig(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		cfg := DefaultIdentityConfig()
		assert.Empty(t, cfg.KeyFile)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Validate_NoKeyNoGenerate", func(t *testing.T) {
		cfg := DefaultIdentityConfig().WithAutoGenerate(false)
		assert.Error(t, cfg.Validate())

		cfg = cfg.WithKeyFile("node.key")
		assert.NoError(t, cfg.Validate())
	})
}

// TestTransportConfig 测试传输配置
func TestTransportConfig(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		cfg := DefaultTransportConfig()
		assert.NoError(t, cfg.Validate())
		assert.Equal(t, 10*time.Second, cfg.HandshakeTimeout.Duration())
		assert.Equal(t, 30*time.Second, cfg.DialTimeout.Duration())
	})

	t.Run("Validate_Kind", func(t *testing.T) {
		for _, kind := range []string{TransportTCP, TransportQUIC, TransportMem} {
			assert.NoError(t, DefaultTransportConfig().WithKind(kind).Validate(), kind)
		}
		assert.Error(t, DefaultTransportConfig().WithKind("websocket").Validate())
	})

	t.Run("Validate_Addrs", func(t *testing.T) {
		assert.Error(t, DefaultTransportConfig().WithListenAddr("localhost").Validate())

		cfg := DefaultTransportConfig()
		cfg.AdvertiseAddrs = []string{"203.0.113.1:0"}
		assert.Error(t, cfg.Validate())

		cfg.AdvertiseAddrs = []string{"203.0.113.1:4001", "[2001:db8::1]:4001"}
		addrs, err := cfg.AdvertiseAddrPorts()
		require.NoError(t, err)
		assert.Equal(t, []netip.AddrPort{
			netip.MustParseAddrPort("203.0.113.1:4001"),
			netip.MustParseAddrPort("[2001:db8::1]:4001"),
		}, addrs)
	})

	t.Run("Validate_Timeouts", func(t *testing.T) {
		assert.Error(t, DefaultTransportConfig().WithDialTimeout(0).Validate())

		cfg := DefaultTransportConfig().WithKind(TransportQUIC)
		cfg.QUIC.MaxStreams = 0
		assert.Error(t, cfg.Validate())
	})
}

// TestMetricsConfig 测试指标配置
func TestMetricsConfig(t *testing.T) {
	cfg := DefaultMetricsConfig()
	assert.NoError(t, cfg.Validate())

	cfg.ListenAddr = "not-an-addr"
	assert.Error(t, cfg.Validate())

	// 禁用时不检查其他字段
	cfg.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestFromJSON(t *testing.T) {
	data := []byte(`{
		"transport": {
			"kind": "quic",
			"listen_addr": "127.0.0.1:5001",
			"advertise_addrs": ["198.51.100.2:5001"],
			"dial_timeout": "5s"
		},
		"known_peers": [{"addr": "127.0.0.1:5002", "public_key": "abc"}]
	}`)

	cfg, err := FromJSON(data)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, TransportQUIC, cfg.Transport.Kind)
	assert.Equal(t, 5*time.Second, cfg.Transport.DialTimeout.Duration())
	// 未出现的字段保留默认值
	assert.Equal(t, 10*time.Second, cfg.Transport.HandshakeTimeout.Duration())
	require.Len(t, cfg.KnownPeers, 1)

	addr, err := cfg.KnownPeers[0].AddrPort()
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("127.0.0.1:5002"), addr)

	_, err = FromJSON([]byte(`{"transport": {"dial_timeout": "soon"}}`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "node.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"transport": {"kind": "mem", "listen_addr": "10.0.0.1:0"}}`), 0o600))
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, TransportMem, cfg.Transport.Kind)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"known_peers": [{"addr": "nowhere"}]}`), 0o600))
	_, err = LoadFile(bad)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestToBindInfo(t *testing.T) {
	cfg := NewConfig()
	cfg.Transport.ListenAddr = "127.0.0.1:0"
	cfg.Transport.AdvertiseAddrs = []string{"198.51.100.2:4001"}

	info, err := cfg.ToBindInfo("key")
	require.NoError(t, err)
	assert.Equal(t, types.BindInfo{
		Addr:           netip.MustParseAddrPort("127.0.0.1:0"),
		AdvertiseAddrs: []netip.AddrPort{netip.MustParseAddrPort("198.51.100.2:4001")},
		PublicKey:      "key",
	}, info)

	cfg.Transport.ListenAddr = ""
	_, err = cfg.ToBindInfo("key")
	assert.Error(t, err)
}

func TestApplyPreset(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, ApplyPreset(cfg, "local"))
	assert.Equal(t, TransportMem, cfg.Transport.Kind)
	assert.NoError(t, cfg.Validate())

	require.NoError(t, ApplyPreset(cfg, "server"))
	assert.Equal(t, TransportQUIC, cfg.Transport.Kind)

	assert.Error(t, ApplyPreset(cfg, "mobile"))
	assert.Error(t, ApplyPreset(nil, "server"))
}

// TestCloneConfig 测试配置克隆
func TestCloneConfig(t *testing.T) {
	original := NewConfig()
	original.KnownPeers = []KnownPeer{{Addr: "127.0.0.1:4001"}}

	cloned := CloneConfig(original)
	require.NotNil(t, cloned)

	// 修改克隆不影响原始
	cloned.KnownPeers[0].Addr = "127.0.0.1:4002"
	cloned.Transport.Kind = TransportQUIC

	assert.Equal(t, "127.0.0.1:4001", original.KnownPeers[0].Addr)
	assert.Equal(t, TransportTCP, original.Transport.Kind)
	assert.Nil(t, CloneConfig(nil))

	t.Log("✅ CloneConfig 测试通过")
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.NoError(t, json.Unmarshal([]byte(`1000`), &d))
	assert.Equal(t, time.Microsecond, d.Duration())

	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))

	out, err := json.Marshal(Duration(2 * time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `"2s"`, string(out))
}

func TestDuration_Edges(t *testing.T) {
	d := Duration(time.Second)
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.Equal(t, time.Second, d.Duration(), "null 保留原值")

	require.NoError(t, json.Unmarshal([]byte(`""`), &d))
	assert.Zero(t, d.Duration(), "空字符串表示零值")

	d = Duration(time.Second)
	assert.ErrorIs(t, json.Unmarshal([]byte(`"-5s"`), &d), ErrNegativeDuration)
	assert.ErrorIs(t, json.Unmarshal([]byte(`-1`), &d), ErrNegativeDuration)
	assert.Equal(t, time.Second, d.Duration(), "解析失败时不修改")

	// 负数超时在加载阶段即被拒绝
	_, err := FromJSON([]byte(`{"transport": {"dial_timeout": "-30s"}}`))
	assert.ErrorIs(t, err, ErrNegativeDuration)
}
