package cosign

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptKey(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		got, err := DecryptKey(blob, "hunter2")
		require.NoError(t, err)
		assert.Equal(t, testKeyHex, got)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := DecryptKey(blob, "letmein")
		assert.Error(t, err)
	})

	t.Run("empty password rejected", func(t *testing.T) {
		_, err := EncryptKey(testKeyHex, "")
		assert.Error(t, err)
	})

	t.Run("short key rejected", func(t *testing.T) {
		_, err := EncryptKey("0xdeadbeef", "hunter2")
		assert.Error(t, err)
	})
}

func TestLoadKey(t *testing.T) {
	t.Run("raw hex key", func(t *testing.T) {
		key, err := LoadKey(KeyConfig{RawPrivateKey: testKeyHex})
		require.NoError(t, err)
		assert.NotNil(t, key)
	})

	t.Run("raw hex key with 0x prefix", func(t *testing.T) {
		key, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
		require.NoError(t, err)
		assert.NotNil(t, key)
	})

	t.Run("encrypted key file", func(t *testing.T) {
		blob, err := EncryptKey(testKeyHex, "hunter2")
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "cosigner.json")
		require.NoError(t, os.WriteFile(path, blob, 0o600))

		key, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
		require.NoError(t, err)
		assert.NotNil(t, key)
	})

	t.Run("no key configured", func(t *testing.T) {
		_, err := LoadKey(KeyConfig{})
		assert.Error(t, err)
	})
}
