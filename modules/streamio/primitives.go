package streamio

import (
	"bytes"
	"hash"
	"io"
)

// DefaultChunkSize is the recommended buffer size for CopyByChunks: large
// enough to amortize syscall overhead, small enough that inserting an
// arbitrarily large object costs O(chunk size) memory, not O(size).
const DefaultChunkSize = 64 * 1024

// CopyByChunks copies src to dst using a chunkSize buffer (DefaultChunkSize
// if chunkSize <= 0) and returns the number of bytes transferred.
func CopyByChunks(dst io.Writer, src io.Reader, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)
	return io.CopyBuffer(dst, src, buf)
}

// HashingWriter forwards every Write to an inner writer while feeding the
// same bytes into a hash.Hash and a running byte counter. Composing the
// sink and the digest into one writer means a single pass over the data
// produces both the stored bytes and their digest.
type HashingWriter struct {
	w     io.Writer
	h     hash.Hash
	count int64
}

func NewHashingWriter(w io.Writer, h hash.Hash) *HashingWriter {
	return &HashingWriter{w: w, h: h}
}

func (hw *HashingWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	if n > 0 {
		hw.h.Write(p[:n])
		hw.count += int64(n)
	}
	return n, err
}

// Count returns the number of bytes written so far.
func (hw *HashingWriter) Count() int64 { return hw.count }

// Sum returns the digest of everything written so far, per hash.Hash.Sum.
func (hw *HashingWriter) Sum(b []byte) []byte { return hw.h.Sum(b) }

// BoundedReader limits reads from an inner reader to at most N bytes,
// yielding io.EOF exactly at that boundary regardless of how much the inner
// reader is willing to produce. It differs from io.LimitReader only in
// exposing the remaining count, with which a caller can check that a stream
// was consumed to exactly its expected length.
type BoundedReader struct {
	r io.Reader
	n int64
}

func NewBoundedReader(r io.Reader, n int64) *BoundedReader {
	return &BoundedReader{r: r, n: n}
}

func (b *BoundedReader) Read(p []byte) (int, error) {
	if b.n <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > b.n {
		p = p[:b.n]
	}
	n, err := b.r.Read(p)
	b.n -= int64(n)
	return n, err
}

// Remaining returns the number of bytes still permitted before EOF.
func (b *BoundedReader) Remaining() int64 { return b.n }

// PeekReader buffers up to K leading bytes of an inner reader for
// inspection without consuming them from the logical stream: Peeked()
// returns the buffered prefix, and Reader() returns a reader that replays
// that prefix before continuing from the inner reader, so a later full read
// sees exactly the original bytes.
type PeekReader struct {
	peeked []byte
	rest   io.Reader
}

// NewPeekReader reads up to k leading bytes from r (fewer at EOF) and
// returns a PeekReader exposing them without having discarded any of r's
// content.
func NewPeekReader(r io.Reader, k int) (*PeekReader, error) {
	buf, err := ReadMax(r, int64(k))
	if err != nil && err != io.EOF {
		return nil, err
	}
	return &PeekReader{peeked: buf, rest: r}, nil
}

// Peeked returns the buffered leading bytes. The caller must not retain a
// reference past further use of the PeekReader's Reader.
func (p *PeekReader) Peeked() []byte { return p.peeked }

// Reader returns a reader that yields the peeked prefix followed by the
// remainder of the original stream, i.e. the original stream unmodified.
func (p *PeekReader) Reader() io.Reader {
	return io.MultiReader(bytes.NewReader(p.peeked), p.rest)
}
