package route

import (
	"path"
	"sort"
	"strings"
	"sync"
)

// Factory constructs a route. It is called once per load.
type Factory func() Route

// Catalog maps page file keys to factories. Page files register themselves
// from init, the way database/sql drivers do.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Default is the catalog Register writes to.
var Default = NewCatalog()

// Register adds the factory for a page file to the default catalog.
// key is the file path relative to the pages root, e.g. "blog/[slug].go".
func Register(key string, factory Factory) {
	Default.Register(key, factory)
}

// Register adds or replaces the factory for key.
func (c *Catalog) Register(key string, factory Factory) {
	if factory == nil {
		panic("route: Register factory is nil for " + key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[NormalizeKey(key)] = factory
}

// Lookup returns the factory registered for key.
func (c *Catalog) Lookup(key string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[NormalizeKey(key)]
	return f, ok
}

// Keys returns the registered keys in sorted order.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.factories))
	for k := range c.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeKey converts a page file path to its route key: forward slashes,
// no leading "./" or "/".
func NormalizeKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	key = path.Clean("/" + key)
	return strings.TrimPrefix(key, "/")
}
