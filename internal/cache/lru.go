package cache

import (
	"container/list"
	"sync"
)

// DefaultCapacity bounds the cache when no explicit capacity is configured.
const DefaultCapacity = 100

// LRU is a fixed-capacity cache keyed by request signature
// (method + absolute target URL), with strict least-recently-used
// eviction by access order. Expiry never evicts: a retrieved-but-stale
// entry is the forwarder's cue to revalidate, not the cache's to drop.
// Safe for concurrent use.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[string]*list.Element
}

type lruItem struct {
	sig   string
	entry *Entry
}

// NewLRU creates an LRU with the given capacity.
// Capacity is fixed at construction and never resized.
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get returns the entry for sig and marks it most recently used.
// A miss has no side effects.
func (c *LRU) Get(sig string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[sig]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruItem).entry, true
}

// Put inserts or replaces the entry for sig at the most-recently-used
// position, evicting the single least-recently-used entry first if the
// cache is at capacity. Replacement removes the old element so recency
// reflects the new insert.
func (c *LRU) Put(sig string, e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[sig]; ok {
		c.order.Remove(el)
		delete(c.items, sig)
	}
	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*lruItem).sig)
		}
	}
	c.items[sig] = c.order.PushFront(&lruItem{sig: sig, entry: e})
}

// Has reports whether sig is cached, without touching recency.
func (c *LRU) Has(sig string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[sig]
	return ok
}

// Delete removes the entry for sig if present.
func (c *LRU) Delete(sig string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[sig]; ok {
		c.order.Remove(el)
		delete(c.items, sig)
	}
}

// Len returns the current entry count.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity returns the fixed maximum entry count.
func (c *LRU) Capacity() int { return c.capacity }
