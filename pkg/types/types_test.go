package types

import (
	"crypto/ed25519"
	"crypto/rand"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindInfo_Validate(t *testing.T) {
	good := BindInfo{
		Addr:           netip.MustParseAddrPort("127.0.0.1:0"),
		AdvertiseAddrs: []netip.AddrPort{netip.MustParseAddrPort("203.0.113.7:4001")},
	}
	assert.NoError(t, good.Validate())

	noAddr := BindInfo{}
	assert.ErrorIs(t, noAddr.Validate(), ErrInvalidBindAddr)

	zeroPort := good.Clone()
	zeroPort.AdvertiseAddrs = append(zeroPort.AdvertiseAddrs, netip.MustParseAddrPort("203.0.113.8:0"))
	assert.ErrorIs(t, zeroPort.Validate(), ErrInvalidAdvertiseAddr)
}

func TestBindInfo_Clone(t *testing.T) {
	orig := BindInfo{
		Addr:           netip.MustParseAddrPort("127.0.0.1:4001"),
		AdvertiseAddrs: []netip.AddrPort{netip.MustParseAddrPort("203.0.113.7:4001")},
		PublicKey:      "abc",
	}

	cp := orig.Clone()
	cp.AdvertiseAddrs[0] = netip.MustParseAddrPort("198.51.100.1:1")

	assert.Equal(t, "203.0.113.7:4001", orig.AdvertiseAddrs[0].String(), "克隆不应共享底层数组")
	assert.Equal(t, orig.PublicKey, cp.PublicKey)
}

func TestStreamID(t *testing.T) {
	assert.Equal(t, "pex", StreamPex.String())
	assert.True(t, StreamPex.IsValid())
	assert.False(t, StreamID(0).IsValid())
	assert.Equal(t, "stream(42)", StreamID(42).String())

	id, err := ParseStreamID("pex")
	require.NoError(t, err)
	assert.Equal(t, StreamPex, id)

	_, err = ParseStreamID("gossip")
	assert.ErrorIs(t, err, ErrInvalidStreamID)
}

func TestPublicKey_RoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	key := PublicKeyFromEd25519(pub)
	assert.False(t, key.IsEmpty())
	assert.Len(t, key.ShortString(), 8)

	decoded, err := key.Ed25519()
	require.NoError(t, err)
	assert.True(t, pub.Equal(decoded))
}

func TestPublicKey_Invalid(t *testing.T) {
	_, err := PublicKey("0OIl").Ed25519()
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	_, err = PublicKey("abc").Ed25519()
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	assert.True(t, PublicKey("").IsEmpty())
	assert.Equal(t, "short", PublicKey("short").ShortString())
}
