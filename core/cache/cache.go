// Package cache provides a generic, thread-safe LRU cache.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a generic LRU cache interface.
type Cache[K comparable, V any] interface {
	// Get retrieves a value and marks it most recently used.
	Get(key K) (V, bool)

	// Peek retrieves a value without touching recency or statistics.
	Peek(key K) (V, bool)

	// Put stores a value, evicting the least recently used entry when full.
	Put(key K, value V)

	// Remove removes a value from the cache.
	Remove(key K) bool

	// Clear removes all entries from the cache.
	Clear()

	// Len returns the number of entries in the cache.
	Len() int

	// Entries returns entry metadata, most recently used first.
	Entries() []EntryInfo[K]

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats contains cache statistics.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
}

// EntryInfo describes one cached key.
type EntryInfo[K comparable] struct {
	Key          K
	LastAccessed time.Time
}

// EvictReason says why an entry left the cache.
type EvictReason int

const (
	// EvictCapacity means the entry was the least recently used when the
	// cache exceeded MaxSize.
	EvictCapacity EvictReason = iota
	// EvictRemoved means Remove was called for the key.
	EvictRemoved
	// EvictCleared means Clear was called.
	EvictCleared
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictRemoved:
		return "removed"
	case EvictCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Config contains cache configuration options.
type Config[K comparable, V any] struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int

	// OnEvict is called, with the cache lock held, when an entry leaves the
	// cache. It must not call back into the cache.
	OnEvict func(key K, value V, reason EvictReason)

	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// entry represents a cache entry.
type entry[K comparable, V any] struct {
	key          K
	value        V
	lastAccessed time.Time
}

// lruCache is a thread-safe LRU cache implementation.
type lruCache[K comparable, V any] struct {
	mu        sync.Mutex
	config    Config[K, V]
	entries   map[K]*list.Element
	evictList *list.List
	stats     Stats
}

// NewLRU creates a new LRU cache with the given configuration.
func NewLRU[K comparable, V any](config Config[K, V]) Cache[K, V] {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &lruCache[K, V]{
		config:    config,
		entries:   make(map[K]*list.Element),
		evictList: list.New(),
	}
}

// Get retrieves a value from the cache.
func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}

	e := ent.Value.(*entry[K, V])
	e.lastAccessed = c.config.Now()
	c.evictList.MoveToFront(ent)
	c.stats.Hits++
	return e.value, true
}

// Peek retrieves a value without updating recency.
func (c *lruCache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return ent.Value.(*entry[K, V]).value, true
}

// Put stores a value in the cache. Storing an existing key replaces its
// value and marks it most recently used.
func (c *lruCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.config.Now()
	if ent, ok := c.entries[key]; ok {
		c.evictList.MoveToFront(ent)
		e := ent.Value.(*entry[K, V])
		e.value = value
		e.lastAccessed = now
		return
	}

	ent := c.evictList.PushFront(&entry[K, V]{
		key:          key,
		value:        value,
		lastAccessed: now,
	})
	c.entries[key] = ent

	for c.config.MaxSize > 0 && c.evictList.Len() > c.config.MaxSize {
		c.removeOldest()
	}
}

// Remove removes a value from the cache and reports whether it was present.
func (c *lruCache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeElement(ent, EvictRemoved)
	return true
}

// Clear removes all entries from the cache.
func (c *lruCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.OnEvict != nil {
		for ent := c.evictList.Back(); ent != nil; ent = ent.Prev() {
			e := ent.Value.(*entry[K, V])
			c.config.OnEvict(e.key, e.value, EvictCleared)
		}
	}
	c.entries = make(map[K]*list.Element)
	c.evictList.Init()
}

// Len returns the number of entries in the cache.
func (c *lruCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Entries returns entry metadata, most recently used first.
func (c *lruCache[K, V]) Entries() []EntryInfo[K] {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]EntryInfo[K], 0, c.evictList.Len())
	for ent := c.evictList.Front(); ent != nil; ent = ent.Next() {
		e := ent.Value.(*entry[K, V])
		out = append(out, EntryInfo[K]{Key: e.key, LastAccessed: e.lastAccessed})
	}
	return out
}

// Stats returns cache statistics.
func (c *lruCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.evictList.Len()
	s.MaxSize = c.config.MaxSize
	return s
}

// removeOldest removes the least recently used entry.
func (c *lruCache[K, V]) removeOldest() {
	ent := c.evictList.Back()
	if ent != nil {
		c.removeElement(ent, EvictCapacity)
		c.stats.Evictions++
	}
}

// removeElement removes an element from the cache.
func (c *lruCache[K, V]) removeElement(ent *list.Element, reason EvictReason) {
	c.evictList.Remove(ent)
	e := ent.Value.(*entry[K, V])
	delete(c.entries, e.key)

	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.value, reason)
	}
}
