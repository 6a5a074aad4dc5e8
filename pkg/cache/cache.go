// Package cache provides a small bounded LRU keyed by string.
//
// Watch mode uses it to remember the content digest of recently pushed files,
// so a burst of filesystem events for an unchanged file doesn't turn into
// redundant remote writes.
package cache

import (
	"container/list"
	gosync "sync"
)

type entry struct {
	key   string
	value string
}

// LRU is a fixed-capacity least-recently-used cache. It is safe for
// concurrent use.
type LRU struct {
	mu       gosync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

// New returns an empty cache holding at most capacity entries. A capacity
// below one is treated as one.
func New(capacity int) *LRU {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		items:    map[string]*list.Element{},
	}
}

// Get returns the cached value for key and marks it most recently used.
func (c *LRU) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*entry).value, true
}

// Put stores the value for key, evicting the least recently used entry when
// the cache is full.
func (c *LRU) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry).value = value
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&entry{key: key, value: value})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}
}

// Len returns the number of cached entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
