// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package container orchestrates the loose store, pack store, and config
// into the single entry point callers use: init, insert/extract routing,
// status, and the loose-to-pack compaction pass.
package container

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/unkcpz/rsdos/config"
	"github.com/unkcpz/rsdos/loose"
	"github.com/unkcpz/rsdos/modules/codec"
	"github.com/unkcpz/rsdos/modules/digest"
	"github.com/unkcpz/rsdos/modules/rsdoserr"
	"github.com/unkcpz/rsdos/modules/strengthen"
	"github.com/unkcpz/rsdos/modules/trace"
	"github.com/unkcpz/rsdos/pack"
)

const (
	looseDirName   = "loose"
	packsDirName   = "packs"
	sandboxDirName = "sandbox"
	duplicatesDir  = "duplicates"
	indexFileName  = "packs.idx"

	settingContainerID  = "container_id"
	settingCompressAlgo = "compression_algorithm"
)

// Container is the handle every caller opens once and threads explicitly;
// it owns the root directory tree and the index DB handle for its
// lifetime. There is no process-wide global state.
type Container struct {
	root   string
	cfg    config.Config
	loose  *loose.Store
	idx    *pack.Index
	packs  *pack.Store
	tracer *trace.Tracker
	cache  *lookupCache
}

func (c *Container) loosePath() string     { return filepath.Join(c.root, looseDirName) }
func (c *Container) packsPath() string     { return filepath.Join(c.root, packsDirName) }
func (c *Container) sandboxPath() string   { return filepath.Join(c.root, sandboxDirName) }
func (c *Container) configPath() string    { return filepath.Join(c.root, config.FileName) }
func (c *Container) indexPath() string     { return filepath.Join(c.root, indexFileName) }
func (c *Container) duplicatesPath() string { return filepath.Join(c.root, duplicatesDir) }

// Init creates the on-disk layout for a new container at root and writes
// config.json. It fails with AlreadyInitialized if config.json already
// exists, unless clear is set, in which case root is purged first.
func Init(root string, cfg config.Config, clear bool) error {
	configPath := filepath.Join(root, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		if !clear {
			return rsdoserr.AlreadyInitializedf("container already initialized at %s", root)
		}
		if strengthen.IsDangerousRoot(root) {
			return rsdoserr.IO(strengthen.ErrDangerousRepoPath, "refusing to clear %s", root)
		}
		if err := os.RemoveAll(root); err != nil {
			return rsdoserr.IO(err, "clearing %s", root)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, dir := range []string{looseDirName, packsDirName, sandboxDirName, duplicatesDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return rsdoserr.IO(err, "creating %s", dir)
		}
	}
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	idx, err := pack.OpenIndex(filepath.Join(root, indexFileName))
	if err != nil {
		return err
	}
	defer idx.Close()
	if err := idx.SetSetting(settingContainerID, cfg.ContainerID); err != nil {
		return err
	}
	if err := idx.SetSetting(settingCompressAlgo, cfg.CompressionAlgorithm); err != nil {
		return err
	}
	return nil
}

// Open loads an existing container's config and opens its index DB. It
// fails with NotInitialized if config.json is missing.
func Open(root string) (*Container, error) {
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, err
	}
	idx, err := pack.OpenIndex(filepath.Join(root, indexFileName))
	if err != nil {
		return nil, err
	}
	cache, err := newLookupCache()
	if err != nil {
		_ = idx.Close()
		return nil, rsdoserr.IO(err, "creating lookup cache")
	}
	c := &Container{
		root:   root,
		cfg:    cfg,
		loose:  loose.New(filepath.Join(root, looseDirName), filepath.Join(root, sandboxDirName), cfg.LoosePrefixLen),
		idx:    idx,
		tracer: trace.NewTracker(false),
		cache:  cache,
	}
	c.packs = pack.New(filepath.Join(root, packsDirName), cfg.PackSizeTarget, idx)
	return c, nil
}

func (c *Container) Close() error {
	c.cache.close()
	return c.idx.Close()
}

func (c *Container) Config() config.Config { return c.cfg }

// SetDebug toggles per-step timing logs emitted during PackAllLoose.
func (c *Container) SetDebug(debug bool) { c.tracer = trace.NewTracker(debug) }

// Insert stores r as a loose object and returns its digest.
func (c *Container) Insert(r io.Reader) (digest.Hash, error) {
	h, _, err := c.loose.InsertStream(r)
	return h, err
}

// InsertMany inserts each reader in order, returning their digests in the
// same order; it stops at the first failure.
func (c *Container) InsertMany(readers []io.Reader) ([]digest.Hash, error) {
	out := make([]digest.Hash, 0, len(readers))
	for _, r := range readers {
		h, err := c.Insert(r)
		if err != nil {
			return out, err
		}
		out = append(out, h)
	}
	return out, nil
}

// Has reports whether digest h is stored, loose or packed.
func (c *Container) Has(h digest.Hash) (bool, error) {
	if c.loose.Contains(h) {
		return true, nil
	}
	if _, ok := c.cache.get(h); ok {
		return true, nil
	}
	entry, ok, err := c.idx.Lookup(h)
	if err != nil {
		return false, err
	}
	if ok {
		c.cache.set(h, entry)
	}
	return ok, nil
}

// Extract returns a reader over the content of h: loose first, then the
// pack index. It fails with NotFound if h is in neither.
func (c *Container) Extract(h digest.Hash) (io.ReadCloser, error) {
	if c.loose.Contains(h) {
		f, size, err := c.loose.Open(h)
		if err != nil {
			return nil, err
		}
		return boundedFile{f: f, r: io.LimitReader(f, size)}, nil
	}
	entry, ok := c.cache.get(h)
	if !ok {
		var err error
		entry, ok, err = c.idx.Lookup(h)
		if err != nil {
			return nil, err
		}
		if ok {
			c.cache.set(h, entry)
		}
	}
	if !ok {
		return nil, rsdoserr.NotFoundf("digest %s not found", h)
	}
	algo, err := c.cfg.Algo()
	if err != nil {
		return nil, err
	}
	return c.packs.Extract(entry, algo)
}

type boundedFile struct {
	f *os.File
	r io.Reader
}

func (b boundedFile) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b boundedFile) Close() error                { return b.f.Close() }

// ListAll returns every stored digest, loose and packed, de-duplicated.
func (c *Container) ListAll() ([]digest.Hash, error) {
	seen := map[digest.Hash]bool{}
	var out []digest.Hash
	looseDigests, err := c.loose.IterDigests()
	if err != nil {
		return nil, err
	}
	for _, d := range looseDigests {
		if !seen[d.Hash] {
			seen[d.Hash] = true
			out = append(out, d.Hash)
		}
	}
	entries, err := c.idx.AllEntries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !seen[e.Hash] {
			seen[e.Hash] = true
			out = append(out, e.Hash)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out, nil
}

// Status summarizes object counts and byte sums by storage class.
type Status struct {
	LooseCount   int
	LooseBytes   int64
	PackedCount  int
	PackedBytes  int64
	PackedRaw    int64
	ContainerID  string
	Compression  string
}

func (c *Container) Status() (Status, error) {
	st := Status{ContainerID: c.cfg.ContainerID, Compression: c.cfg.CompressionAlgorithm}
	looseDigests, err := c.loose.IterDigests()
	if err != nil {
		return st, err
	}
	st.LooseCount = len(looseDigests)
	for _, d := range looseDigests {
		st.LooseBytes += d.Size
	}
	entries, err := c.idx.AllEntries()
	if err != nil {
		return st, err
	}
	st.PackedCount = len(entries)
	for _, e := range entries {
		st.PackedBytes += e.Size
		st.PackedRaw += e.RawSize
	}
	return st, nil
}

// PackAllLoose migrates every loose object into packs, honoring mode for
// the compression decision. It processes digests in sorted order for
// determinism, commits one index transaction, and only then removes the
// migrated loose files.
func (c *Container) PackAllLoose(mode pack.CompressMode) (pack.Stats, error) {
	looseDigests, err := c.loose.IterDigests()
	if err != nil {
		return pack.Stats{}, err
	}
	c.tracer.StepNext("enumerated %d loose objects", len(looseDigests))

	digests := make([]digest.Hash, len(looseDigests))
	sizeOf := make(map[digest.Hash]int64, len(looseDigests))
	for i, d := range looseDigests {
		digests[i] = d.Hash
		sizeOf[d.Hash] = d.Size
	}

	algo, err := c.cfg.Algo()
	if err != nil {
		return pack.Stats{}, err
	}

	opener := func(h digest.Hash) (io.ReadCloser, int64, error) {
		f, size, err := c.loose.Open(h)
		if err != nil {
			return nil, 0, err
		}
		return f, size, nil
	}

	stats, err := c.packs.InsertMany(digests, opener, mode, algo)
	if err != nil {
		return stats, err
	}
	c.tracer.StepNext("committed %d objects to packs", stats.ObjectsPacked)

	for _, h := range digests {
		if err := c.loose.Remove(h); err != nil {
			return stats, err
		}
	}
	c.tracer.StepNext("removed %d loose files", len(digests))
	return stats, nil
}

// CompressionAlgo decodes the container's configured compression algorithm.
func (c *Container) CompressionAlgo() (codec.Algo, error) {
	return c.cfg.Algo()
}
