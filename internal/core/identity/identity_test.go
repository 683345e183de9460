package identity

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-p2p-transport/config"
)

func TestGenerate(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	pub, err := id.PublicKey().Ed25519()
	require.NoError(t, err)
	assert.Equal(t, id.PrivateKey().Public(), pub)

	data := []byte("hello")
	sig := id.Sign(data)
	assert.True(t, Verify(id.PublicKey(), data, sig))
	assert.False(t, Verify(id.PublicKey(), []byte("other"), sig))
	assert.False(t, Verify("not-a-key", data, sig))

	other, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, id.PublicKey(), other.PublicKey())
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilPrivateKey)

	_, err = New(ed25519.PrivateKey{1, 2, 3})
	assert.ErrorIs(t, err, ErrUnsupportedKeyType)
}

func TestPEM_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")

	id, err := Generate()
	require.NoError(t, err)
	require.NoError(t, SavePrivateKeyPEM(id.PrivateKey(), path, nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, id.PublicKey(), loaded.PublicKey())

	_, err = Load(filepath.Join(t.TempDir(), "missing.key"), nil)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = ParsePrivateKeyPEM([]byte("garbage"), nil)
	assert.ErrorIs(t, err, ErrInvalidPEM)

	pubPEM, err := MarshalPublicKeyPEM(id.PrivateKey().Public().(ed25519.PublicKey))
	require.NoError(t, err)
	_, err = ParsePrivateKeyPEM(pubPEM, nil)
	assert.ErrorIs(t, err, ErrInvalidPEM)
}

func TestPEM_Encrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")
	passphrase := []byte("correct horse")

	id, err := Generate()
	require.NoError(t, err)
	require.NoError(t, SavePrivateKeyPEM(id.PrivateKey(), path, passphrase))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), pemTypeEncrypted)

	loaded, err := Load(path, passphrase)
	require.NoError(t, err)
	assert.Equal(t, id.PublicKey(), loaded.PublicKey())

	_, err = Load(path, nil)
	assert.ErrorIs(t, err, ErrPassphraseRequired)

	_, err = Load(path, []byte("wrong"))
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	// 未加密的文件忽略口令
	plain := filepath.Join(t.TempDir(), "plain.key")
	require.NoError(t, SavePrivateKeyPEM(id.PrivateKey(), plain, nil))
	loaded, err = Load(plain, passphrase)
	require.NoError(t, err)
	assert.Equal(t, id.PublicKey(), loaded.PublicKey())
}

func TestDecryptKey_Truncated(t *testing.T) {
	_, err := decryptKey([]byte("short"), []byte("pw"))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestLoadOrCreate(t *testing.T) {
	t.Run("Ephemeral", func(t *testing.T) {
		id, err := LoadOrCreate(config.IdentityConfig{AutoGenerate: true})
		require.NoError(t, err)
		assert.False(t, id.PublicKey().IsEmpty())

		_, err = LoadOrCreate(config.IdentityConfig{})
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("GenerateThenReload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "node.key")

		first, err := LoadOrCreate(config.IdentityConfig{KeyFile: path, AutoGenerate: true})
		require.NoError(t, err)
		second, err := LoadOrCreate(config.IdentityConfig{KeyFile: path})
		require.NoError(t, err)
		assert.Equal(t, first.PublicKey(), second.PublicKey())
	})

	t.Run("Encrypted", func(t *testing.T) {
		cfg := config.IdentityConfig{
			KeyFile:      filepath.Join(t.TempDir(), "node.key"),
			AutoGenerate: true,
			Passphrase:   "secret",
		}
		first, err := LoadOrCreate(cfg)
		require.NoError(t, err)

		cfg.AutoGenerate = false
		second, err := LoadOrCreate(cfg)
		require.NoError(t, err)
		assert.Equal(t, first.PublicKey(), second.PublicKey())

		cfg.Passphrase = ""
		_, err = LoadOrCreate(cfg)
		assert.ErrorIs(t, err, ErrPassphraseRequired)
	})

	t.Run("MissingWithoutGenerate", func(t *testing.T) {
		_, err := LoadOrCreate(config.IdentityConfig{KeyFile: filepath.Join(t.TempDir(), "node.key")})
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("CorruptFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "node.key")
		require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))

		// 损坏的文件不会被覆盖
		_, err := LoadOrCreate(config.IdentityConfig{KeyFile: path, AutoGenerate: true})
		assert.ErrorIs(t, err, ErrInvalidPEM)
	})
}

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Identity.KeyFile = filepath.Join(t.TempDir(), "node.key")

	var id *Identity
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&id),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, id)
	loaded, err := Load(cfg.Identity.KeyFile, nil)
	require.NoError(t, err)
	assert.Equal(t, loaded.PublicKey(), id.PublicKey())
}
