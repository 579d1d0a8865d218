package scope

import (
	"fmt"

	"github.com/maypok86/otter"
)

// DefaultCacheSize is the number of scope trees kept in memory.
const DefaultCacheSize = 2048

// TreeCache memoizes scope trees by file path and content hash, so trees
// survive analysis re-derivation for files that did not change.
type TreeCache struct {
	cache otter.Cache[string, *Node]
}

// NewTreeCache creates a cache holding up to capacity trees.
func NewTreeCache(capacity int) (*TreeCache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	c, err := otter.MustBuilder[string, *Node](capacity).
		Cost(func(key string, value *Node) uint32 { return 1 }).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scope cache: %w", err)
	}
	return &TreeCache{cache: c}, nil
}

func cacheKey(path, hash string) string {
	return path + "@" + hash
}

// Get returns the cached tree for path at hash.
func (c *TreeCache) Get(path, hash string) (*Node, bool) {
	return c.cache.Get(cacheKey(path, hash))
}

// Set stores a tree for path at hash.
func (c *TreeCache) Set(path, hash string, tree *Node) {
	c.cache.Set(cacheKey(path, hash), tree)
}

// Size returns the number of cached trees.
func (c *TreeCache) Size() int {
	return c.cache.Size()
}

// Close releases the cache.
func (c *TreeCache) Close() {
	c.cache.Close()
}
