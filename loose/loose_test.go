package loose

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/unkcpz/rsdos/modules/digest"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	looseDir := filepath.Join(root, "loose")
	sandboxDir := filepath.Join(root, "sandbox")
	require.NoError(t, os.MkdirAll(looseDir, 0o755))
	require.NoError(t, os.MkdirAll(sandboxDir, 0o755))
	return New(looseDir, sandboxDir, 2)
}

func TestInsertStreamHashIdentity(t *testing.T) {
	s := newStore(t)
	h, size, err := s.InsertStream(bytes.NewReader([]byte("hello world")))
	require.NoError(t, err)
	require.EqualValues(t, 11, size)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", h.String())
	require.True(t, s.Contains(h))

	p := s.Path(h)
	require.Equal(t, filepath.Join(s.root, "b9", "4d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"), p)
	fi, err := os.Stat(p)
	require.NoError(t, err)
	require.EqualValues(t, 11, fi.Size())
}

func TestExtractRoundTrip(t *testing.T) {
	s := newStore(t)
	payload := []byte("the quick brown fox jumps over the lazy dog")
	h, _, err := s.InsertStream(bytes.NewReader(payload))
	require.NoError(t, err)

	f, size, err := s.Open(h)
	require.NoError(t, err)
	defer f.Close()
	require.EqualValues(t, len(payload), size)
	out, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestDuplicateInsertIsNotAnError(t *testing.T) {
	s := newStore(t)
	payload := []byte("hello world")
	h1, _, err := s.InsertStream(bytes.NewReader(payload))
	require.NoError(t, err)
	h2, _, err := s.InsertStream(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	digests, err := s.IterDigests()
	require.NoError(t, err)
	require.Len(t, digests, 1)
}

func TestOpenMissingIsNotFound(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Open(digest.NewHash("ff00000000000000000000000000000000000000000000000000000000ff"))
	require.Error(t, err)
}

func TestIterDigestsFindsFlatLayoutWhenPrefixLenZero(t *testing.T) {
	root := t.TempDir()
	looseDir := filepath.Join(root, "loose")
	sandboxDir := filepath.Join(root, "sandbox")
	require.NoError(t, os.MkdirAll(looseDir, 0o755))
	require.NoError(t, os.MkdirAll(sandboxDir, 0o755))
	s := New(looseDir, sandboxDir, 0)

	h, _, err := s.InsertStream(bytes.NewReader([]byte("hello world")))
	require.NoError(t, err)

	p := s.Path(h)
	require.Equal(t, filepath.Join(looseDir, h.String()), p, "prefix len 0 stores the object as a flat file under root")
	require.True(t, s.Contains(h))

	digests, err := s.IterDigests()
	require.NoError(t, err)
	require.Len(t, digests, 1)
	require.Equal(t, h, digests[0].Hash)
}

func TestIterDigestsSortedAndRemove(t *testing.T) {
	s := newStore(t)
	ha, _, err := s.InsertStream(bytes.NewReader([]byte("aaa")))
	require.NoError(t, err)
	hb, _, err := s.InsertStream(bytes.NewReader([]byte("bbbb")))
	require.NoError(t, err)

	digests, err := s.IterDigests()
	require.NoError(t, err)
	require.Len(t, digests, 2)
	require.True(t, bytes.Compare(digests[0].Hash[:], digests[1].Hash[:]) <= 0)

	require.NoError(t, s.Remove(ha))
	require.False(t, s.Contains(ha))
	require.True(t, s.Contains(hb))
}
