// Package cache holds previously fetched documents in a fixed-capacity store.
//
// Eviction is strictly first-in-first-out: a hit does not refresh an entry, so
// a document that is read over and over still leaves the cache once capacity
// newer documents have been inserted after it.
package cache

import (
	"container/list"
	"sync"
)

// DefaultCapacity is used when the configured capacity is not positive
const DefaultCapacity = 16

type entry struct {
	address  string
	document string
}

// Cache is a bounded, insertion-ordered document cache safe for concurrent use
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

// New creates a cache holding at most capacity documents
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Get returns the document stored for address
func (c *Cache) Get(address string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[address]
	if !ok {
		return "", false
	}
	return el.Value.(*entry).document, true
}

// Put stores document under address, evicting the oldest insertion when full.
// Re-putting a present address replaces its document in place.
func (c *Cache) Put(address, document string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[address]; ok {
		el.Value.(*entry).document = document
		return
	}

	for c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).address)
	}

	c.entries[address] = c.order.PushBack(&entry{address: address, document: document})
}

// Len returns the number of cached documents
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity returns the configured capacity
func (c *Cache) Capacity() int {
	return c.capacity
}
