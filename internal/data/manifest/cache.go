package manifest

import (
	"container/list"
	"sync"

	"modgraph/internal/engine/graph"
	"modgraph/internal/shared/observability"
)

// cache is a capacity-bounded LRU of decoded manifests keyed by module name.
// Negative lookups (module not found) are cached as nil entries.
type cache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most-recently used
}

type cacheEntry struct {
	name     string
	manifest *graph.Manifest
}

func newCache(capacity int) *cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &cache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *cache) get(name string) (*graph.Manifest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[name]
	if !ok {
		observability.ManifestCacheMisses.Inc()
		return nil, false
	}
	observability.ManifestCacheHits.Inc()
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).manifest, true
}

func (c *cache) put(name string, m *graph.Manifest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[name]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).manifest = m
		return
	}

	if c.order.Len() >= c.capacity {
		if back := c.order.Back(); back != nil {
			c.order.Remove(back)
			delete(c.items, back.Value.(*cacheEntry).name)
		}
	}
	c.items[name] = c.order.PushFront(&cacheEntry{name: name, manifest: m})
}

func (c *cache) evict(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[name]
	if !ok {
		return
	}
	c.order.Remove(el)
	delete(c.items, name)
}

func (c *cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element, c.capacity)
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
