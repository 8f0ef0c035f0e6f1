package blob

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeyState struct {
	salt []byte
	hash string
}

func (f *fakeKeyState) BlobSalt() ([]byte, error)     { return f.salt, nil }
func (f *fakeKeyState) SetBlobSalt(salt []byte) error { f.salt = salt; return nil }
func (f *fakeKeyState) KeyHash() (string, error)      { return f.hash, nil }
func (f *fakeKeyState) SetKeyHash(hash string) error  { f.hash = hash; return nil }

func TestOpenFirstRunRecordsSaltAndHash(t *testing.T) {
	keys := &fakeKeyState{}

	v, err := Open(t.TempDir(), "hunter2", keys)
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Len(t, keys.salt, saltLen)
	assert.NotEmpty(t, keys.hash)
}

func TestOpenAcceptsSamePassword(t *testing.T) {
	dir := t.TempDir()
	keys := &fakeKeyState{}

	_, err := Open(dir, "hunter2", keys)
	require.NoError(t, err)

	_, err = Open(dir, "hunter2", keys)
	assert.NoError(t, err)
}

func TestOpenRejectsWrongPassword(t *testing.T) {
	dir := t.TempDir()
	keys := &fakeKeyState{}

	_, err := Open(dir, "hunter2", keys)
	require.NoError(t, err)

	_, err = Open(dir, "wrong password", keys)
	assert.Error(t, err)
}

func TestStoreFetchRoundTrip(t *testing.T) {
	v, err := Open(t.TempDir(), "hunter2", &fakeKeyState{})
	require.NoError(t, err)

	plain := []byte("file content")

	ref, err := v.Store(plain)
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	got, err := v.Fetch(ref)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestStoreWritesSealedContent(t *testing.T) {
	dir := t.TempDir()
	v, err := Open(dir, "hunter2", &fakeKeyState{})
	require.NoError(t, err)

	ref, err := v.Store([]byte("file content"))
	require.NoError(t, err)

	raw, err := os.ReadFile(v.path(ref))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "file content")
}

func TestStoreEmptyContent(t *testing.T) {
	v, err := Open(t.TempDir(), "hunter2", &fakeKeyState{})
	require.NoError(t, err)

	ref, err := v.Store(nil)
	require.NoError(t, err)

	got, err := v.Fetch(ref)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchUnknownRef(t *testing.T) {
	v, err := Open(t.TempDir(), "hunter2", &fakeKeyState{})
	require.NoError(t, err)

	_, err = v.Fetch("no-such-ref")
	assert.Error(t, err)

	_, err = v.Fetch("x")
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	v, err := Open(t.TempDir(), "hunter2", &fakeKeyState{})
	require.NoError(t, err)

	ref, err := v.Store([]byte("file content"))
	require.NoError(t, err)

	require.NoError(t, v.Delete(ref))

	_, err = v.Fetch(ref)
	assert.Error(t, err)

	// Deleting again is not an error.
	assert.NoError(t, v.Delete(ref))
}
