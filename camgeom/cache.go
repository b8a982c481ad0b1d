package camgeom

import (
	"fmt"
	"sync"
)

// Cache loads and memoizes one Camera snapshot per family.  It is safe
// for concurrent use; under contention on the same family, exactly one
// load occurs and all callers see its result.  Construct one with
// NewCache and inject it where geometry is needed; there is no package
// level instance.
type Cache struct {
	mu        sync.Mutex
	providers map[Family]Provider
	entries   map[Family]*cacheEntry
}

type cacheEntry struct {
	once sync.Once
	cam  *Camera
	err  error
}

// NewCache returns an empty geometry cache.
func NewCache() *Cache {
	return &Cache{
		providers: make(map[Family]Provider),
		entries:   make(map[Family]*cacheEntry),
	}
}

// Register associates a geometry provider with a camera family.
// Registering after the family has been loaded has no effect on the
// cached snapshot.
func (c *Cache) Register(family Family, p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[family] = p
}

// Get returns the cached Camera for family, loading it from the
// registered provider on first use.  Families with no registered
// provider fail with *ConfigurationError.
func (c *Cache) Get(family Family) (*Camera, error) {
	c.mu.Lock()
	p, ok := c.providers[family]
	if !ok {
		c.mu.Unlock()
		return nil, &ConfigurationError{Msg: fmt.Sprintf("no geometry provider for camera family %s", family)}
	}
	entry, ok := c.entries[family]
	if !ok {
		entry = &cacheEntry{}
		c.entries[family] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.cam, entry.err = Load(family, p)
	})
	return entry.cam, entry.err
}
