// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package loose implements the loose object store: a sharded directory of
// files, each named by the hex digest of its own contents. It is the
// landing zone for every direct insert; pack_all_loose later migrates its
// contents into packs.
package loose

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/unkcpz/rsdos/modules/digest"
	"github.com/unkcpz/rsdos/modules/rsdoserr"
	"github.com/unkcpz/rsdos/modules/streamio"
	"github.com/unkcpz/rsdos/modules/strengthen"
)

// Store is a loose object store rooted at a directory and a sandbox
// directory for in-flight temp files. Both must already exist.
type Store struct {
	root           string
	sandbox        string
	loosePrefixLen int
}

func New(root, sandbox string, loosePrefixLen int) *Store {
	return &Store{root: root, sandbox: sandbox, loosePrefixLen: loosePrefixLen}
}

// shardPath splits a hex digest into its shard directory and leaf file name
// per Config.loose_prefix_len.
func (s *Store) shardPath(hex string) (dir, leaf string) {
	p := s.loosePrefixLen
	if p > len(hex) {
		p = len(hex)
	}
	return hex[:p], hex[p:]
}

// Path returns the absolute on-disk path for digest h, whether or not it
// exists.
func (s *Store) Path(h digest.Hash) string {
	dir, leaf := s.shardPath(h.String())
	return filepath.Join(s.root, dir, leaf)
}

// InsertStream reads r to EOF, storing its bytes as a loose object and
// returning the resulting digest and size. Duplicate content (an object
// already present under the computed digest) is not an error: the temp
// file is discarded and the existing digest is returned.
func (s *Store) InsertStream(r io.Reader) (digest.Hash, int64, error) {
	tmp, err := os.CreateTemp(s.sandbox, "obj-")
	if err != nil {
		return digest.ZeroHash, 0, rsdoserr.IO(err, "creating sandbox file")
	}
	tmpPath := tmp.Name()
	cleanupTmp := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	hasher := digest.NewHasher()
	hw := streamio.NewHashingWriter(tmp, hasher.Hash)
	if _, err := streamio.LargeCopy(hw, r); err != nil {
		cleanupTmp()
		return digest.ZeroHash, 0, rsdoserr.IO(err, "copying into sandbox file")
	}
	if err := tmp.Sync(); err != nil {
		cleanupTmp()
		return digest.ZeroHash, 0, rsdoserr.IO(err, "fsync sandbox file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return digest.ZeroHash, 0, rsdoserr.IO(err, "closing sandbox file")
	}

	h := hasher.Sum()
	size := hw.Count()
	dir, leaf := s.shardPath(h.String())
	shardDir := filepath.Join(s.root, dir)
	if err := os.MkdirAll(shardDir, 0o755); err != nil {
		_ = os.Remove(tmpPath)
		return digest.ZeroHash, 0, rsdoserr.IO(err, "creating shard directory %s", shardDir)
	}

	dest := filepath.Join(shardDir, leaf)
	if _, err := os.Stat(dest); err == nil {
		// Duplicate: someone already stored this content. Discard ours.
		_ = os.Remove(tmpPath)
		return h, size, nil
	}
	if err := strengthen.FinalizeObject(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return digest.ZeroHash, 0, rsdoserr.IO(err, "renaming sandbox file into %s", dest)
	}
	return h, size, nil
}

// Contains reports whether a loose object for h exists on disk.
func (s *Store) Contains(h digest.Hash) bool {
	_, err := os.Stat(s.Path(h))
	return err == nil
}

// Open returns a reader over the loose object for h. It fails with
// NotFound if h has no loose file.
func (s *Store) Open(h digest.Hash) (*os.File, int64, error) {
	p := s.Path(h)
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, rsdoserr.NotFoundf("loose object %s not found", h)
		}
		return nil, 0, rsdoserr.IO(err, "opening %s", p)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, rsdoserr.IO(err, "stat %s", p)
	}
	return f, fi.Size(), nil
}

// Remove deletes the loose file for h. It is used only by pack_all_loose,
// after the object has been durably committed to a pack. Removing an
// absent object is not an error.
func (s *Store) Remove(h digest.Hash) error {
	if err := os.Remove(s.Path(h)); err != nil && !os.IsNotExist(err) {
		return rsdoserr.IO(err, "removing loose object %s", h)
	}
	return nil
}

// DigestSize pairs a digest with the size of its loose file, as yielded by
// IterDigests.
type DigestSize struct {
	Hash digest.Hash
	Size int64
}

// IterDigests walks every shard directory under root and returns every
// loose object found, sorted lexicographically by hex digest for
// deterministic pack_all_loose ordering.
func (s *Store) IterDigests() ([]DigestSize, error) {
	var out []DigestSize
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rsdoserr.IO(err, "reading loose root %s", s.root)
	}
	for _, shard := range entries {
		if !shard.IsDir() {
			// loose_prefix_len == 0 places objects directly as full-hex-named
			// files under root rather than inside a shard directory: treat
			// any such file here as a leaf in its own right.
			if !digest.ValidateHex(shard.Name()) {
				continue
			}
			fi, err := shard.Info()
			if err != nil {
				return nil, rsdoserr.IO(err, "stat %s", filepath.Join(s.root, shard.Name()))
			}
			out = append(out, DigestSize{Hash: digest.NewHash(shard.Name()), Size: fi.Size()})
			continue
		}
		if !digest.IsShardDir(shard.Name()) && shard.Name() != "" {
			continue
		}
		shardPath := filepath.Join(s.root, shard.Name())
		leaves, err := os.ReadDir(shardPath)
		if err != nil {
			return nil, rsdoserr.IO(err, "reading shard %s", shardPath)
		}
		for _, leaf := range leaves {
			if leaf.IsDir() {
				continue
			}
			full := shard.Name() + leaf.Name()
			if !digest.ValidateHex(full) {
				continue
			}
			fi, err := leaf.Info()
			if err != nil {
				return nil, rsdoserr.IO(err, "stat %s", filepath.Join(shardPath, leaf.Name()))
			}
			out = append(out, DigestSize{Hash: digest.NewHash(full), Size: fi.Size()})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Hash[:], out[j].Hash[:]) < 0
	})
	return out, nil
}
