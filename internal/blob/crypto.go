// Package blob stores encrypted file content. Content is sealed on the
// client before it reaches storage; the registry only ever sees the
// opaque blob ref recorded on the file entry.
package blob

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

const (
	// scryptN is the CPU/memory cost parameter for scrypt key derivation (2^15).
	scryptN = 32768

	// scryptR is the block size parameter for scrypt key derivation.
	scryptR = 8

	// scryptP is the parallelization parameter for scrypt key derivation.
	scryptP = 1

	// scryptKeyLen is the derived master key length in bytes.
	scryptKeyLen = 32

	// hkdfKeyLen is the output length for HKDF-derived subkeys.
	hkdfKeyLen = 32

	// saltLen is the length of the randomly generated vault salt.
	saltLen = 32
)

// DeriveKey derives the 32-byte master key from the vault password and
// salt using scrypt (N=32768, r=8, p=1). The password is NFKC-normalized
// before hashing so the same passphrase typed on different platforms
// derives the same key.
func DeriveKey(password string, salt []byte) ([]byte, error) {
	password = norm.NFKC.String(password)

	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	return key, nil
}

// KeyHash computes the password verification hash:
//
//	HKDF(ikm=masterKey, salt=vaultSalt, info="VaultShareKeyHash") → 32 bytes → hex
//
// Stored locally on first run and compared on later runs to catch a
// mistyped password before any blob is written with the wrong key.
func KeyHash(key, salt []byte) (string, error) {
	derived, err := hkdfDeriveKey(key, salt, []byte("VaultShareKeyHash"), hkdfKeyLen)
	if err != nil {
		return "", fmt.Errorf("deriving keyhash: %w", err)
	}

	return hex.EncodeToString(derived), nil
}

// NewSalt generates a random vault salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	return salt, nil
}

// ZeroKey overwrites the key material in the given slice. Call this
// immediately after constructing a Cipher to limit the window during
// which raw key bytes are accessible in memory.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}

// Cipher seals and opens blob content with AES-256-GCM. The content key
// is derived from the master key via HKDF-SHA256:
//
//	gcm_key = HKDF(ikm=masterKey, salt=nil, info="VaultShareBlobKey") 32 B
//
// Wire format: [12-byte IV][ciphertext+GCM tag], random IV per seal so
// identical content produces different ciphertext each time.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher creates a Cipher from the 32-byte master key. Derived key
// material is zeroed after the AEAD is constructed.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != scryptKeyLen {
		return nil, fmt.Errorf("invalid key length %d: expected %d bytes", len(key), scryptKeyLen)
	}

	gcmKey, err := hkdfDeriveKey(key, nil, []byte("VaultShareBlobKey"), hkdfKeyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving blob key: %w", err)
	}

	block, err := aes.NewCipher(gcmKey)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	subtle.ConstantTimeCopy(1, gcmKey, make([]byte, len(gcmKey)))

	return &Cipher{gcm: gcm}, nil
}

// hkdfDeriveKey derives keyLen bytes using HKDF-SHA256 with the given
// IKM, salt, and info parameters.
func hkdfDeriveKey(ikm, salt, info []byte, keyLen int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)

	out := make([]byte, keyLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}

	return out, nil
}

// Seal encrypts blob content with a random 12-byte IV.
// Returns [12-byte IV][ciphertext+GCM tag].
func (c *Cipher) Seal(data []byte) ([]byte, error) {
	iv := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generating IV: %w", err)
	}

	ct := c.gcm.Seal(nil, iv, data, nil)
	result := make([]byte, len(iv)+len(ct))
	copy(result, iv)
	copy(result[len(iv):], ct)

	return result, nil
}

// Open decrypts sealed blob content.
// Format: [12-byte IV][ciphertext+GCM tag]. A payload of exactly 12
// bytes (nonce only, no ciphertext) is treated as empty content.
func (c *Cipher) Open(data []byte) ([]byte, error) {
	nonceSize := c.gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(data))
	}

	if len(data) == nonceSize {
		return []byte{}, nil
	}

	plain, err := c.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting content: %w", err)
	}

	return plain, nil
}
