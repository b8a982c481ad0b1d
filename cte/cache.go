package cte

import "sync"

// Cache memoizes Operators by (axis length, cti) pair.  Building the
// operator for a full raw-frame axis is expensive, and every detector of
// a camera shares the same segment geometry, so one build serves the
// whole run.  The cache is safe for concurrent use with one build per
// key under contention.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
}

type cacheKey struct {
	npix int
	cti  float64
}

type cacheEntry struct {
	once sync.Once
	op   *Operator
}

// NewCache returns an empty operator cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*cacheEntry)}
}

// Get returns the operator for the given axis length and cti, building
// it on first use with DefaultMaxTransfers.  A cti of zero returns nil:
// the operator would be the identity, so callers skip the stage entirely
// rather than materialize an npix x npix matrix.
func (c *Cache) Get(npix int, cti float64) *Operator {
	if cti == 0 {
		return nil
	}
	key := cacheKey{npix: npix, cti: cti}
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()
	entry.once.Do(func() {
		entry.op = Build(npix, cti, DefaultMaxTransfers)
	})
	return entry.op
}
