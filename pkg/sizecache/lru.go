// Package sizecache keeps measured package sizes in an LRU cache that can be
// snapshotted to disk between runs.
package sizecache

import (
	"sync"
	"sync/atomic"
)

// entry is a doubly-linked list node holding a key-value pair.
type entry[K comparable, V any] struct {
	key   K
	value V
	prev  *entry[K, V]
	next  *entry[K, V]
}

// LRU is a thread-safe generic LRU cache bounded by entry count.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[K, V]
	head    *entry[K, V] // Most recently used.
	tail    *entry[K, V] // Least recently used.

	maxEntries int

	// Metrics (atomic for lock-free reads).
	hits   atomic.Int64
	misses atomic.Int64
}

// NewLRU creates an LRU holding at most maxEntries values. It panics if
// maxEntries is not positive.
func NewLRU[K comparable, V any](maxEntries int) *LRU[K, V] {
	if maxEntries <= 0 {
		panic("sizecache: max entries must be positive")
	}

	return &LRU[K, V]{
		entries:    make(map[K]*entry[K, V]),
		maxEntries: maxEntries,
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)

		var zero V

		return zero, false
	}

	c.hits.Add(1)
	c.moveToFront(ent)

	return ent.value, true
}

// Put adds or updates a value, evicting the least recently used entry
// when the cache is full.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		ent.value = value
		c.moveToFront(ent)

		return
	}

	for len(c.entries) >= c.maxEntries && c.tail != nil {
		c.removeEntry(c.tail)
	}

	ent := &entry[K, V]{key: key, value: value}
	c.entries[key] = ent
	c.addToFront(ent)
}

// Len returns the number of entries in the cache.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Oldest calls fn for every entry from least to most recently used.
func (c *LRU[K, V]) Oldest(fn func(key K, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ent := c.tail; ent != nil; ent = ent.prev {
		fn(ent.key, ent.value)
	}
}

// Clear removes all entries.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*entry[K, V])
	c.head = nil
	c.tail = nil
}

// Hits returns the total hit count.
func (c *LRU[K, V]) Hits() int64 { return c.hits.Load() }

// Misses returns the total miss count.
func (c *LRU[K, V]) Misses() int64 { return c.misses.Load() }

func (c *LRU[K, V]) addToFront(ent *entry[K, V]) {
	ent.prev = nil
	ent.next = c.head

	if c.head != nil {
		c.head.prev = ent
	}

	c.head = ent

	if c.tail == nil {
		c.tail = ent
	}
}

func (c *LRU[K, V]) unlink(ent *entry[K, V]) {
	if ent.prev != nil {
		ent.prev.next = ent.next
	} else {
		c.head = ent.next
	}

	if ent.next != nil {
		ent.next.prev = ent.prev
	} else {
		c.tail = ent.prev
	}

	ent.prev = nil
	ent.next = nil
}

func (c *LRU[K, V]) moveToFront(ent *entry[K, V]) {
	if c.head == ent {
		return
	}

	c.unlink(ent)
	c.addToFront(ent)
}

func (c *LRU[K, V]) removeEntry(ent *entry[K, V]) {
	c.unlink(ent)
	delete(c.entries, ent.key)
}
