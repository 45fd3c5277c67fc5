package streamio

import (
	"bytes"
	"crypto/sha256"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashingWriter(t *testing.T) {
	var buf bytes.Buffer
	h := sha256.New()
	hw := NewHashingWriter(&buf, h)
	n, err := io.Copy(hw, strings.NewReader("hello world"))
	require.NoError(t, err)
	require.EqualValues(t, 11, n)
	require.EqualValues(t, 11, hw.Count())
	require.Equal(t, "hello world", buf.String())
	want := sha256.Sum256([]byte("hello world"))
	require.Equal(t, want[:], hw.Sum(nil))
}

func TestBoundedReader(t *testing.T) {
	br := NewBoundedReader(strings.NewReader("hello world"), 5)
	b, err := io.ReadAll(br)
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))
	require.EqualValues(t, 0, br.Remaining())

	// a second read must report EOF, not keep pulling from the inner reader.
	n, err := br.Read(make([]byte, 4))
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
}

func TestPeekReaderDoesNotConsume(t *testing.T) {
	original := "the quick brown fox jumps over the lazy dog"
	pr, err := NewPeekReader(strings.NewReader(original), 9)
	require.NoError(t, err)
	require.Equal(t, "the quick", string(pr.Peeked()))

	full, err := io.ReadAll(pr.Reader())
	require.NoError(t, err)
	require.Equal(t, original, string(full))
}

func TestPeekReaderShortInput(t *testing.T) {
	pr, err := NewPeekReader(strings.NewReader("hi"), 512)
	require.NoError(t, err)
	require.Equal(t, "hi", string(pr.Peeked()))
	full, err := io.ReadAll(pr.Reader())
	require.NoError(t, err)
	require.Equal(t, "hi", string(full))
}

func TestCopyByChunks(t *testing.T) {
	var buf bytes.Buffer
	n, err := CopyByChunks(&buf, strings.NewReader("payload"), 2)
	require.NoError(t, err)
	require.EqualValues(t, 7, n)
	require.Equal(t, "payload", buf.String())
}
