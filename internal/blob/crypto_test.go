package blob

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()

	key := make([]byte, scryptKeyLen)
	for i := range key {
		key[i] = byte(i)
	}

	return key
}

func TestSealOpenRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	plain := []byte("attack at dawn")

	sealed, err := c.Seal(plain)
	require.NoError(t, err)
	assert.NotEqual(t, plain, sealed)

	got, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestSealRandomizesIV(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	a, err := c.Seal([]byte("same content"))
	require.NoError(t, err)
	b, err := c.Seal([]byte("same content"))
	require.NoError(t, err)

	assert.False(t, bytes.Equal(a, b))
}

func TestOpenRejectsWrongKey(t *testing.T) {
	c1, err := NewCipher(testKey(t))
	require.NoError(t, err)

	other := testKey(t)
	other[0] ^= 0xff
	c2, err := NewCipher(other)
	require.NoError(t, err)

	sealed, err := c1.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = c2.Open(sealed)
	assert.Error(t, err)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	sealed, err := c.Seal([]byte("secret"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0x01

	_, err = c.Open(sealed)
	assert.Error(t, err)
}

func TestOpenNonceOnlyPayloadIsEmpty(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	got, err := c.Open(make([]byte, 12))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpenRejectsShortPayload(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	_, err = c.Open([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestNewCipherRejectsBadKeyLength(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.Error(t, err)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0xab}, saltLen)

	k1, err := DeriveKey("correct horse", salt)
	require.NoError(t, err)
	k2, err := DeriveKey("correct horse", salt)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, scryptKeyLen)
}

func TestDeriveKeyNormalizesPassword(t *testing.T) {
	salt := bytes.Repeat([]byte{0xab}, saltLen)

	// NFD and NFC spellings of the same passphrase derive the same key.
	k1, err := DeriveKey("cafe\u0301", salt)
	require.NoError(t, err)
	k2, err := DeriveKey("caf\u00e9", salt)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
}

func TestKeyHashVariesWithKeyAndSalt(t *testing.T) {
	key := testKey(t)
	salt := bytes.Repeat([]byte{0xab}, saltLen)

	h1, err := KeyHash(key, salt)
	require.NoError(t, err)

	other := testKey(t)
	other[0] ^= 0xff
	h2, err := KeyHash(other, salt)
	require.NoError(t, err)

	h3, err := KeyHash(key, bytes.Repeat([]byte{0xcd}, saltLen))
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestZeroKey(t *testing.T) {
	key := testKey(t)
	ZeroKey(key)
	assert.Equal(t, make([]byte, scryptKeyLen), key)
}
