package container

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/unkcpz/rsdos/config"
	"github.com/unkcpz/rsdos/modules/digest"
	"github.com/unkcpz/rsdos/pack"
)

func initContainer(t *testing.T, cfg config.Config) (*Container, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "c1")
	require.NoError(t, Init(root, cfg, false))
	c, err := Open(root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, root
}

func TestS1LooseInsertExtract(t *testing.T) {
	c, root := initContainer(t, config.Default())
	h, err := c.Insert(bytes.NewReader([]byte("hello world")))
	require.NoError(t, err)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", h.String())

	p := filepath.Join(root, "loose", "b9", "4d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9")
	fi, err := os.Stat(p)
	require.NoError(t, err)
	require.EqualValues(t, 11, fi.Size())

	r, err := c.Extract(h)
	require.NoError(t, err)
	defer r.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(out))
}

func TestS2Duplicate(t *testing.T) {
	c, root := initContainer(t, config.Default())
	h1, err := c.Insert(bytes.NewReader([]byte("hello world")))
	require.NoError(t, err)
	h2, err := c.Insert(bytes.NewReader([]byte("hello world")))
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	ok, err := c.Has(h1)
	require.NoError(t, err)
	require.True(t, ok)

	entries, err := os.ReadDir(filepath.Join(root, "loose", "b9"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestS3PackAndExtract(t *testing.T) {
	c, root := initContainer(t, config.Default())
	ha, err := c.Insert(bytes.NewReader([]byte("aaa")))
	require.NoError(t, err)
	hb, err := c.Insert(bytes.NewReader([]byte("bbbb")))
	require.NoError(t, err)

	_, err = c.PackAllLoose(pack.Never)
	require.NoError(t, err)

	fi, err := os.Stat(filepath.Join(root, "packs", "0"))
	require.NoError(t, err)
	require.EqualValues(t, 7, fi.Size())

	looseEntries, err := os.ReadDir(filepath.Join(root, "loose"))
	require.NoError(t, err)
	for _, e := range looseEntries {
		sub, err := os.ReadDir(filepath.Join(root, "loose", e.Name()))
		require.NoError(t, err)
		require.Empty(t, sub)
	}

	cases := []struct {
		h    digest.Hash
		want string
	}{
		{ha, "aaa"},
		{hb, "bbbb"},
	}
	for _, c2 := range cases {
		r, err := c.Extract(c2.h)
		require.NoError(t, err)
		out, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		require.Equal(t, c2.want, string(out))
	}
}

func TestS4HeuristicRefusesAlreadyCompressed(t *testing.T) {
	c, _ := initContainer(t, config.Default())
	payload := append([]byte{0x78, 0x9C}, bytes.Repeat([]byte{0x01}, 10*1024-2)...)
	h, err := c.Insert(bytes.NewReader(payload))
	require.NoError(t, err)

	_, err = c.PackAllLoose(pack.Auto)
	require.NoError(t, err)

	e, ok, err := c.idx.Lookup(h)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, e.Compressed)
}

func TestS5CompressedRoundtrip(t *testing.T) {
	c, _ := initContainer(t, config.Default())
	payload := bytes.Repeat([]byte("A"), 100*1024)
	h, err := c.Insert(bytes.NewReader(payload))
	require.NoError(t, err)

	_, err = c.PackAllLoose(pack.Auto)
	require.NoError(t, err)

	e, ok, err := c.idx.Lookup(h)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, e.Compressed)
	require.Less(t, e.Size, e.RawSize)

	r, err := c.Extract(h)
	require.NoError(t, err)
	defer r.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestS6PackRollover(t *testing.T) {
	cfg := config.Default()
	cfg.PackSizeTarget = 1024
	c, root := initContainer(t, cfg)

	for i := 0; i < 10; i++ {
		b := bytes.Repeat([]byte{byte('a' + i)}, 300)
		_, err := c.Insert(bytes.NewReader(b))
		require.NoError(t, err)
	}
	_, err := c.PackAllLoose(pack.Never)
	require.NoError(t, err)

	for _, id := range []string{"0", "1", "2", "3"} {
		_, err := os.Stat(filepath.Join(root, "packs", id))
		require.NoError(t, err, "pack %s should exist", id)
	}
	_, err = os.Stat(filepath.Join(root, "packs", "4"))
	require.True(t, os.IsNotExist(err))
}

func TestCacheTransparentAcrossWarmAndCold(t *testing.T) {
	c, _ := initContainer(t, config.Default())
	payload := []byte("cache transparency payload")
	h, err := c.Insert(bytes.NewReader(payload))
	require.NoError(t, err)
	_, err = c.PackAllLoose(pack.Always)
	require.NoError(t, err)

	_, ok := c.cache.get(h)
	require.False(t, ok, "cache should start cold for a freshly packed object")

	coldReader, err := c.Extract(h)
	require.NoError(t, err)
	coldOut, err := io.ReadAll(coldReader)
	require.NoError(t, err)
	require.NoError(t, coldReader.Close())
	require.Equal(t, payload, coldOut)

	_, ok = c.cache.get(h)
	require.True(t, ok, "Extract should have warmed the lookup cache on a miss")

	warmReader, err := c.Extract(h)
	require.NoError(t, err)
	warmOut, err := io.ReadAll(warmReader)
	require.NoError(t, err)
	require.NoError(t, warmReader.Close())
	require.Equal(t, coldOut, warmOut, "Extract must return identical content whether the lookup cache is warm or cold")
}

func TestIdempotentInit(t *testing.T) {
	root := filepath.Join(t.TempDir(), "c1")
	cfg := config.Default()
	require.NoError(t, Init(root, cfg, false))

	b1, err := os.ReadFile(filepath.Join(root, "config.json"))
	require.NoError(t, err)

	err = Init(root, config.Default(), false)
	require.Error(t, err)

	require.NoError(t, Init(root, cfg, true))
	b2, err := os.ReadFile(filepath.Join(root, "config.json"))
	require.NoError(t, err)
	require.Equal(t, b1, b2)
}
