package mem

import (
	"container/list"
	"sync"
)

// MRUCache keeps recently used query vectors so repeated searches skip
// re-embedding. Entries remember the model fingerprint they were produced
// with; a lookup under a different fingerprint misses.
type MRUCache struct {
	maxEntries int
	cache      map[string]*list.Element
	order      *list.List
	mu         sync.Mutex
}

type cacheEntry struct {
	key         string
	vector      []float32
	fingerprint uint64
}

// NewMRUCache creates a cache bounded to maxEntries.
func NewMRUCache(maxEntries int) *MRUCache {
	return &MRUCache{
		maxEntries: maxEntries,
		cache:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get returns the cached vector for key under the supplied fingerprint.
func (c *MRUCache) Get(key string, fingerprint uint64) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, found := c.cache[key]
	if !found {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if entry.fingerprint != fingerprint {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return entry.vector, true
}

// Put stores a vector for key, evicting the least recently used entry when
// the cache is full.
func (c *MRUCache) Put(key string, vector []float32, fingerprint uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, found := c.cache[key]; found {
		entry := elem.Value.(*cacheEntry)
		entry.vector = vector
		entry.fingerprint = fingerprint
		c.order.MoveToFront(elem)
		return
	}
	if c.order.Len() >= c.maxEntries {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
	c.cache[key] = c.order.PushFront(&cacheEntry{key: key, vector: vector, fingerprint: fingerprint})
}
