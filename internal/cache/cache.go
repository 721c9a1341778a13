// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package cache provides the bounded LRU used for rendered glyph masks.
package cache

import "sync"

// Cache is an LRU cache holding at most limit entries.
//
// Cache is safe for concurrent use and must not be copied.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[K, V]
	order   lruList[K, V]
	limit   int
	onEvict func(K, V)

	hits, misses, evictions uint64
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	prev, next *entry[K, V]
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithEvict calls fn for every entry removed to stay within the limit.
// It is not called by Delete or Clear.
func WithEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *Cache[K, V]) { c.onEvict = fn }
}

// New creates a cache holding at most limit entries. A limit of 0 or less
// means unbounded.
func New[K comparable, V any](limit int, opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		entries: make(map[K]*entry[K, V]),
		limit:   limit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.moveToFront(e)
	return e.value, true
}

// Set stores value under key, evicting the least recently used entries
// beyond the limit.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.set(key, value)
}

// GetOrCreate returns the cached value for key, calling create on a miss.
// create runs with the cache locked, so it runs once per key.
func (c *Cache[K, V]) GetOrCreate(key K, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.hits++
		c.order.moveToFront(e)
		return e.value
	}
	c.misses++
	v := create()
	c.set(key, v)
	return v
}

func (c *Cache[K, V]) set(key K, value V) {
	if e, ok := c.entries[key]; ok {
		e.value = value
		c.order.moveToFront(e)
		return
	}
	e := &entry[K, V]{key: key, value: value}
	c.entries[key] = e
	c.order.pushFront(e)

	for c.limit > 0 && len(c.entries) > c.limit {
		old := c.order.removeOldest()
		delete(c.entries, old.key)
		c.evictions++
		if c.onEvict != nil {
			c.onEvict(old.key, old.value)
		}
	}
}

// Delete removes key and reports whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.order.remove(e)
	delete(c.entries, key)
	return true
}

// DeleteFunc removes every entry for which match returns true.
func (c *Cache[K, V]) DeleteFunc(match func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if match(k) {
			c.order.remove(e)
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*entry[K, V])
	c.order = lruList[K, V]{}
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Len:       len(c.entries),
		Limit:     c.limit,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Stats contains cache statistics.
type Stats struct {
	Len       int
	Limit     int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}
