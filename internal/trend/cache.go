package trend

import (
	"sync"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
)

// peakKey identifies a peak by series content and smoothing window.
type peakKey struct {
	fingerprint uint64
	window      int
}

type peakResult struct {
	record domain.PeakRecord
	found  bool
}

// lruCache is a simple thread-safe LRU cache for peak results.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[peakKey]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   peakKey
	value peakResult
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[peakKey]*entry),
	}
}

func (c *lruCache) get(key peakKey) (peakResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return peakResult{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key peakKey, value peakResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
