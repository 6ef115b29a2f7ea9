package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptKey(t *testing.T) {
	blob, err := EncryptKey("0x"+testKey, "passphrase")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "passphrase")
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)

	_, err = EncryptKey(testKey, "")
	assert.Error(t, err)
	_, err = EncryptKey("abcd", "pw")
	assert.Error(t, err)
}

func TestLoadKey(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKey})
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	blob, err := EncryptKey(testKey, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "operator.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err = LoadKey(KeyConfig{KeyFile: path, Passphrase: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = LoadKey(KeyConfig{})
	assert.Error(t, err)
	_, err = LoadKey(KeyConfig{RawPrivateKey: "zz"})
	assert.Error(t, err)
}

func TestSignAndRecover(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)
	assert.Equal(t, testKey, s.PrivateKeyHex())

	msg := []byte("hello")
	sig, err := s.SignMessage(msg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig, "0x"))

	addr, err := RecoverSigner(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), addr)

	other, err := RecoverSigner([]byte("hellp"), sig)
	require.NoError(t, err)
	assert.NotEqual(t, s.Address(), other)

	_, err = RecoverSigner(msg, "0x1234")
	assert.Error(t, err)
	_, err = RecoverSigner(msg, "nothex")
	assert.Error(t, err)
}

func TestRequestHeadersRoundTrip(t *testing.T) {
	s, err := GenerateSigner()
	require.NoError(t, err)

	body := []byte(`{"outcome_id":0}`)
	h, err := s.RequestHeadersAt("POST", "/api/markets/1/buy", body, 1_700_000_000)
	require.NoError(t, err)
	assert.Equal(t, "1700000000", h[HeaderTimestamp])
	assert.Equal(t, s.Address().Hex(), h[HeaderAddress])

	msg := RequestMessage(h[HeaderTimestamp], "POST", "/api/markets/1/buy", body)
	addr, err := RecoverSigner(msg, h[HeaderSignature])
	require.NoError(t, err)
	assert.Equal(t, s.Address(), addr)

	tampered := RequestMessage(h[HeaderTimestamp], "POST", "/api/markets/1/buy", []byte(`{"outcome_id":1}`))
	addr, err = RecoverSigner(tampered, h[HeaderSignature])
	require.NoError(t, err)
	assert.NotEqual(t, s.Address(), addr)
}
