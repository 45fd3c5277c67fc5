package pack

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/unkcpz/rsdos/modules/classify"
	"github.com/unkcpz/rsdos/modules/codec"
	"github.com/unkcpz/rsdos/modules/digest"
	"github.com/unkcpz/rsdos/modules/rsdoserr"
	"github.com/unkcpz/rsdos/modules/streamio"
)

// CompressMode selects how pack_all_loose decides whether to compress each
// object it migrates.
type CompressMode int

const (
	// Auto consults the classify package per object.
	Auto CompressMode = iota
	// Never forces compressed=false regardless of heuristic.
	Never
	// Always forces compression regardless of heuristic.
	Always
)

func ParseCompressMode(s string) (CompressMode, error) {
	switch s {
	case "", "auto":
		return Auto, nil
	case "never", "no":
		return Never, nil
	case "always", "yes":
		return Always, nil
	default:
		return Auto, fmt.Errorf("pack: unknown compress mode %q", s)
	}
}

// Store manages the packs/ directory: pack selection, single-writer
// appends, and reads. Each Store owns the pack-write region for one
// container; pack writes across multiple Store instances pointed at the
// same root are undefined behavior per the single-writer model.
type Store struct {
	root           string
	packSizeTarget int64
	idx            *Index
}

func New(root string, packSizeTarget int64, idx *Index) *Store {
	return &Store{root: root, packSizeTarget: packSizeTarget, idx: idx}
}

func (s *Store) packPath(id int64) string {
	return filepath.Join(s.root, strconv.FormatInt(id, 10))
}

// Stats summarizes one pack_all_loose run.
type Stats struct {
	ObjectsPacked   int
	BytesPacked     int64
	BytesCompressed int64
	PacksTouched    map[int64]bool
}

// InsertMany migrates the given loose objects into packs inside a single
// index transaction. openers yields, per digest, a fresh reader over that
// object's current loose bytes and its size. On success every bytes-write
// has already reached disk before the single commit; on any failure the
// transaction rolls back and the caller's loose files are left untouched.
func (s *Store) InsertMany(
	digests []digest.Hash,
	open func(digest.Hash) (io.ReadCloser, int64, error),
	mode CompressMode,
	algo codec.Algo,
) (Stats, error) {
	stats := Stats{PacksTouched: map[int64]bool{}}
	tx, err := s.idx.Begin()
	if err != nil {
		return stats, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// currentID/currentLength track pack selection in memory for the whole
	// batch: a *sql.Tx holds an exclusive connection, so querying
	// MaxPackID/PackLength against the parent *sql.DB here would read only
	// pre-batch committed state under SQLite's connection-scoped snapshot
	// isolation and never see this transaction's own inserts. Seeding once
	// before the loop and updating after each append keeps selection
	// consistent with what's actually been written so far in this batch.
	currentID, ok, err := s.idx.MaxPackID()
	if err != nil {
		return stats, err
	}
	if !ok {
		currentID = 0
	}
	currentLength, err := s.idx.PackLength(currentID)
	if err != nil {
		return stats, err
	}

	for _, h := range digests {
		r, size, err := open(h)
		if err != nil {
			return stats, err
		}
		packID := currentID
		if !(currentLength == 0 || currentLength+size <= s.packSizeTarget) {
			packID = currentID + 1
			currentLength = 0
		}
		entry, werr := s.appendObject(h, r, size, packID, mode, algo)
		_ = r.Close()
		if werr != nil {
			return stats, werr
		}
		if err := tx.Insert(entry); err != nil {
			return stats, err
		}
		currentID = entry.PackID
		currentLength += entry.Size
		stats.ObjectsPacked++
		stats.BytesPacked += entry.Size
		stats.BytesCompressed += entry.RawSize - entry.Size
		stats.PacksTouched[entry.PackID] = true
	}

	if err := tx.Commit(); err != nil {
		return stats, err
	}
	committed = true
	return stats, nil
}

// appendObject writes one object's bytes to pack packID and returns the
// Entry describing where they landed. packID is decided by the caller
// (InsertMany), which tracks pack selection itself; appendObject only
// writes. It does not touch the index; the caller commits the Entry as
// part of a larger transaction.
func (s *Store) appendObject(h digest.Hash, r io.Reader, size int64, packID int64, mode CompressMode, algo codec.Algo) (Entry, error) {
	peek, err := streamio.NewPeekReader(r, classify.PeekSize)
	if err != nil {
		return Entry{}, rsdoserr.IO(err, "peeking object %s", h)
	}
	sizeKnown := size >= 0
	tag := classify.Classify(peek.Peeked(), size, sizeKnown)

	compress := false
	switch mode {
	case Never:
		compress = false
	case Always:
		compress = true
	default:
		compress = classify.ShouldCompress(tag, algo.Name != codec.None && algo.Name != "", false)
	}

	f, err := os.OpenFile(s.packPath(packID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Entry{}, rsdoserr.IO(err, "opening pack %d", packID)
	}
	defer f.Close()

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return Entry{}, rsdoserr.IO(err, "seeking pack %d", packID)
	}

	// hasher and the raw byte count run over the uncompressed source; fw
	// counts bytes actually landing in the pack file, which is the
	// compressed length when compress is set and equal to the raw length
	// otherwise.
	hasher := digest.NewHasher()
	fw := &countingWriter{w: f}

	var dst io.Writer = fw
	var closer io.Closer
	if compress {
		wc, err := codec.WrapWriter(algo, fw)
		if err != nil {
			return Entry{}, rsdoserr.Codec(err, "wrapping writer for %s", h)
		}
		dst = wc
		closer = wc
	}

	src := io.TeeReader(peek.Reader(), hasher)
	rawSize, err := streamio.CopyByChunks(dst, src, streamio.DefaultChunkSize)
	if err != nil {
		return Entry{}, rsdoserr.IO(err, "writing object %s to pack %d", h, packID)
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			return Entry{}, rsdoserr.Codec(err, "flushing compressor for %s", h)
		}
	}
	if err := f.Sync(); err != nil {
		return Entry{}, rsdoserr.IO(err, "fsync pack %d", packID)
	}

	return Entry{
		Hash:       hasher.Sum(),
		Compressed: compress,
		Size:       fw.n,
		Offset:     offset,
		RawSize:    rawSize,
		PackID:     packID,
	}, nil
}

// countingWriter forwards to w while counting bytes written, used to
// record a pack entry's stored (possibly compressed) length.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Extract returns a reader yielding exactly RawSize bytes of the object
// recorded at e, transparently decompressing if e.Compressed.
func (s *Store) Extract(e Entry, algo codec.Algo) (io.ReadCloser, error) {
	f, err := os.Open(s.packPath(e.PackID))
	if err != nil {
		return nil, rsdoserr.IO(err, "opening pack %d", e.PackID)
	}
	sr := newSizeReader(f, e.Offset, e.Size)
	if !e.Compressed {
		return readCloser{Reader: sr, closer: f}, nil
	}
	zr, err := codec.WrapReader(algo, sr)
	if err != nil {
		_ = f.Close()
		return nil, rsdoserr.Codec(err, "wrapping reader for pack %d offset %d", e.PackID, e.Offset)
	}
	return readCloser{Reader: zr, closer: multiCloser{zr, f}}, nil
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r readCloser) Close() error { return r.closer.Close() }

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var firstErr error
	for _, c := range m {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
