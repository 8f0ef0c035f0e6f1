// Package state persists the client's local, per-user engine state in a
// bbolt database: recipient trash tombstones, the last materialized
// partitions for cold starts, and the key-derivation parameters for the
// blob vault.
package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/alexjbarnes/vault-share/internal/vault"
)

const (
	// stateDirPerm is the permission mode for the state directory.
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	appBucket  = []byte("app")
	saltKey    = []byte("blob_salt")
	keyHashKey = []byte("key_hash")

	viewActiveKey  = []byte("active")
	viewSharedKey  = []byte("shared_with_me")
	viewTrashKey   = []byte("trash")
	viewSavedAtKey = []byte("saved_at")
)

func userTombstonesBucket(user string) []byte {
	return []byte("user:" + user + ":tombstones")
}

func userViewsBucket(user string) []byte {
	return []byte("user:" + user + ":views")
}

// State wraps a bbolt database for all persistent client state. It
// implements vault.TombstoneStore.
type State struct {
	db *bolt.DB
}

// Load opens the state database at ~/.vault-share/state.db, creating it
// if it does not exist.
func Load() (*State, error) {
	return LoadAt(dbPath())
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(appBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// RecipientTombstones returns every recipient tombstone stored for a user.
func (s *State) RecipientTombstones(user string) ([]vault.TrashTombstone, error) {
	var tombs []vault.TrashTombstone

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(userTombstonesBucket(user))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var t vault.TrashTombstone
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("decoding tombstone %s: %w", k, err)
			}

			tombs = append(tombs, t)

			return nil
		})
	})

	return tombs, err
}

// PutRecipientTombstone persists one recipient tombstone, keyed by its
// file ID. An existing tombstone for the same file is replaced.
func (s *State) PutRecipientTombstone(user string, t vault.TrashTombstone) error {
	if t.ID == "" {
		return fmt.Errorf("tombstone file ID is required for persistence")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(userTombstonesBucket(user))
		if err != nil {
			return err
		}

		data, err := json.Marshal(t)
		if err != nil {
			return err
		}

		return b.Put([]byte(t.ID), data)
	})
}

// DeleteRecipientTombstone removes the tombstone for a file ID. Removing
// a tombstone that does not exist is not an error.
func (s *State) DeleteRecipientTombstone(user, fileID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(userTombstonesBucket(user))
		if b == nil {
			return nil
		}

		return b.Delete([]byte(fileID))
	})
}

// SaveViews caches the latest materialized partitions so a restarted
// client can render immediately while the first reconciliation pass runs.
func (s *State) SaveViews(user string, p vault.Partitions) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(userViewsBucket(user))
		if err != nil {
			return err
		}

		for _, kv := range []struct {
			key []byte
			val any
		}{
			{viewActiveKey, p.Active},
			{viewSharedKey, p.SharedWithMe},
			{viewTrashKey, p.Trash},
			{viewSavedAtKey, time.Now().UTC()},
		} {
			data, err := json.Marshal(kv.val)
			if err != nil {
				return err
			}

			if err := b.Put(kv.key, data); err != nil {
				return err
			}
		}

		return nil
	})
}

// LoadViews returns the cached partitions for a user and when they were
// saved. ok is false when no cache exists.
func (s *State) LoadViews(user string) (p vault.Partitions, savedAt time.Time, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(userViewsBucket(user))
		if b == nil {
			return nil
		}

		at := b.Get(viewSavedAtKey)
		if at == nil {
			return nil
		}

		if err := json.Unmarshal(at, &savedAt); err != nil {
			return fmt.Errorf("decoding cache timestamp: %w", err)
		}

		for _, kv := range []struct {
			key []byte
			dst any
		}{
			{viewActiveKey, &p.Active},
			{viewSharedKey, &p.SharedWithMe},
			{viewTrashKey, &p.Trash},
		} {
			v := b.Get(kv.key)
			if v == nil {
				continue
			}

			if err := json.Unmarshal(v, kv.dst); err != nil {
				return fmt.Errorf("decoding cached partition: %w", err)
			}
		}

		ok = true

		return nil
	})

	return p, savedAt, ok, err
}

// BlobSalt returns the stored key-derivation salt, or nil when none has
// been generated yet.
func (s *State) BlobSalt() ([]byte, error) {
	var salt []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(saltKey)
		if v != nil {
			salt = append([]byte(nil), v...)
		}

		return nil
	})

	return salt, err
}

// SetBlobSalt persists the key-derivation salt. Set once at first run;
// changing it makes every stored blob undecryptable.
func (s *State) SetBlobSalt(salt []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(saltKey, salt)
	})
}

// KeyHash returns the stored verification hash of the derived master key,
// or empty string.
func (s *State) KeyHash() (string, error) {
	var hash string

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(keyHashKey)
		if v != nil {
			hash = string(v)
		}

		return nil
	})

	return hash, err
}

// SetKeyHash persists the master key verification hash.
func (s *State) SetKeyHash(hash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(keyHashKey, []byte(hash))
	})
}

func dbPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		// Fail loudly rather than silently writing to the current directory
		// where the database might end up with wrong permissions or inside
		// a source-controlled tree.
		fmt.Fprintf(os.Stderr, "fatal: cannot determine home directory: %v\n", err)
		os.Exit(1)
	}

	return filepath.Join(dir, ".vault-share", "state.db")
}
