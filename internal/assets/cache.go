package assets

import "sync"

// Cache is an in-memory store of fetched asset bytes keyed by locator.
// When maxBytes is positive, the oldest entries are evicted to stay under it.
type Cache struct {
	data     map[string][]byte
	order    []string
	size     int64
	maxBytes int64
	mu       sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a cache bounded to maxBytes (0 = unbounded).
func NewCache(maxBytes int64) *Cache {
	return &Cache{
		data:     make(map[string][]byte),
		maxBytes: maxBytes,
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache. Items larger than the bound are not stored.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(data))
	if c.maxBytes > 0 && n > c.maxBytes {
		return
	}
	if old, ok := c.data[key]; ok {
		c.size -= int64(len(old))
		c.removeOrder(key)
	}
	for c.maxBytes > 0 && c.size+n > c.maxBytes && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		c.size -= int64(len(c.data[oldest]))
		delete(c.data, oldest)
	}
	c.data[key] = data
	c.order = append(c.order, key)
	c.size += n
}

func (c *Cache) removeOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.order = nil
	c.size = 0
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
