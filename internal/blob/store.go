package blob

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	// blobDirPerm is the permission mode for blob directories.
	blobDirPerm = fs.FileMode(0o700)

	// blobFilePerm is the permission mode for blob files. Content is
	// already sealed, but the files stay private regardless.
	blobFilePerm = fs.FileMode(0o600)
)

// KeyState persists the key-derivation parameters between runs
// (internal/state provides the bbolt implementation).
type KeyState interface {
	BlobSalt() ([]byte, error)
	SetBlobSalt(salt []byte) error
	KeyHash() (string, error)
	SetKeyHash(hash string) error
}

// Vault is an encrypted blob store over a local directory. Store seals
// content and writes it under a fresh ref; Fetch reads and opens it. The
// ref is the only thing callers keep, recorded on the file entry.
type Vault struct {
	cipher *Cipher
	dir    string
}

// Open derives the master key from the vault password, verifies it
// against the stored key hash (or records salt and hash on first run),
// and returns a Vault writing sealed blobs under dir. The derived key is
// zeroed before returning.
func Open(dir, password string, keys KeyState) (*Vault, error) {
	salt, err := keys.BlobSalt()
	if err != nil {
		return nil, fmt.Errorf("loading vault salt: %w", err)
	}

	firstRun := len(salt) == 0
	if firstRun {
		if salt, err = NewSalt(); err != nil {
			return nil, err
		}
	}

	key, err := DeriveKey(password, salt)
	if err != nil {
		return nil, err
	}
	defer ZeroKey(key)

	hash, err := KeyHash(key, salt)
	if err != nil {
		return nil, err
	}

	if firstRun {
		if err := keys.SetBlobSalt(salt); err != nil {
			return nil, fmt.Errorf("storing vault salt: %w", err)
		}

		if err := keys.SetKeyHash(hash); err != nil {
			return nil, fmt.Errorf("storing key hash: %w", err)
		}
	} else {
		stored, err := keys.KeyHash()
		if err != nil {
			return nil, fmt.Errorf("loading key hash: %w", err)
		}

		if stored != "" && stored != hash {
			return nil, errors.New("vault password does not match the stored key hash")
		}
	}

	cipher, err := NewCipher(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, blobDirPerm); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}

	return &Vault{cipher: cipher, dir: dir}, nil
}

// path maps a ref to its file, sharded by the ref's first two characters
// to keep directory listings small.
func (v *Vault) path(ref string) string {
	return filepath.Join(v.dir, ref[:2], ref+".blob")
}

// Store seals plaintext and writes it under a fresh ref. The write goes
// through a temp file and rename so a crash never leaves a half-written
// blob under a live ref.
func (v *Vault) Store(plaintext []byte) (string, error) {
	sealed, err := v.cipher.Seal(plaintext)
	if err != nil {
		return "", err
	}

	ref := uuid.NewString()
	dst := v.path(ref)

	if err := os.MkdirAll(filepath.Dir(dst), blobDirPerm); err != nil {
		return "", fmt.Errorf("creating blob shard: %w", err)
	}

	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, sealed, blobFilePerm); err != nil {
		return "", fmt.Errorf("writing blob: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalizing blob: %w", err)
	}

	return ref, nil
}

// Fetch reads and opens the blob for a ref.
func (v *Vault) Fetch(ref string) ([]byte, error) {
	if len(ref) < 2 {
		return nil, fmt.Errorf("invalid blob ref %q", ref)
	}

	sealed, err := os.ReadFile(v.path(ref))
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", ref, err)
	}

	plain, err := v.cipher.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("opening blob %s: %w", ref, err)
	}

	return plain, nil
}

// Delete removes the blob for a ref. Deleting a ref that does not exist
// is not an error.
func (v *Vault) Delete(ref string) error {
	if len(ref) < 2 {
		return fmt.Errorf("invalid blob ref %q", ref)
	}

	if err := os.Remove(v.path(ref)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting blob %s: %w", ref, err)
	}

	return nil
}
