package resolution

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/FreeworkEarth/neodepends/internal/core"
	"github.com/FreeworkEarth/neodepends/internal/lang"
	"github.com/FreeworkEarth/neodepends/internal/metrics"
	"github.com/FreeworkEarth/neodepends/internal/stackgraph"
)

// Entry is one built file: its key, the content kept for classification,
// and its graph with partial paths. Entries are immutable once cached.
type Entry struct {
	Key     core.FileKey
	Lang    lang.Lang
	Content string
	Graph   *stackgraph.FileGraph
}

// Cache maps file keys to built entries. A nil entry records a failed build
// so the same content is never rebuilt. Entries are never evicted.
type Cache struct {
	mu      sync.RWMutex
	entries map[core.FileKey]*Entry
	builds  singleflight.Group
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[core.FileKey]*Entry)}
}

// Contains reports whether key has been built, successfully or not.
func (c *Cache) Contains(key core.FileKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Get returns the entry for key. The entry is nil when the build failed.
func (c *Cache) Get(key core.FileKey) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Insert stores e, which may be nil, under key.
func (c *Cache) Insert(key core.FileKey, e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrBuild returns the cached entry for key, calling build at most once
// across concurrent callers when it is absent. A build error is returned
// without caching anything, so a later call builds again.
func (c *Cache) GetOrBuild(key core.FileKey, build func() (*Entry, error)) (*Entry, error) {
	if e, ok := c.Get(key); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return e, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := c.builds.Do(key.Filename+"\x00"+key.ContentId.String(), func() (any, error) {
		if e, ok := c.Get(key); ok {
			return e, nil
		}
		e, err := build()
		if err != nil {
			return nil, err
		}
		c.Insert(key, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}
