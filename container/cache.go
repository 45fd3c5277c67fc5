package container

import (
	"github.com/dgraph-io/ristretto/v2"
	"github.com/unkcpz/rsdos/modules/digest"
	"github.com/unkcpz/rsdos/pack"
)

// lookupCache memoizes recent db_object lookups so a hot digest checked
// repeatedly by has/extract doesn't round-trip through SQLite every time.
// It is purely an optimization: a miss or eviction always falls back to
// idx.Lookup, and the cache is never the source of truth. Entries are keyed
// by the digest's hex string, since ristretto keys must be strings, byte
// slices or integers.
type lookupCache struct {
	c *ristretto.Cache[string, pack.Entry]
}

const (
	cacheNumCounters = 100_000
	cacheMaxCost     = 10_000 // number of entries, not bytes: Entry is small and fixed-size
	cacheBufferItems = 64
)

func newLookupCache() (*lookupCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, pack.Entry]{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: cacheBufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &lookupCache{c: c}, nil
}

func (lc *lookupCache) get(h digest.Hash) (pack.Entry, bool) {
	if lc == nil {
		return pack.Entry{}, false
	}
	return lc.c.Get(h.String())
}

// set stores e under h and waits for ristretto's buffered write to land,
// so a get right after set sees the entry.
func (lc *lookupCache) set(h digest.Hash, e pack.Entry) {
	if lc == nil {
		return
	}
	lc.c.Set(h.String(), e, 1)
	lc.c.Wait()
}

func (lc *lookupCache) close() {
	if lc != nil {
		lc.c.Close()
	}
}
