// Package identity guarantees that a persisted row has at most one live
// in-memory instance per (entity type, key).
package identity

import (
	"sync"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/metrics"
)

// Key identifies one persisted row.
type Key struct {
	Type string
	ID   int64
}

// KeyOf returns the cache key of e.
func KeyOf(e entity.Entity) Key {
	return Key{Type: e.EntityType(), ID: e.PrimaryKey()}
}

// Cache maps keys to live instances. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]entity.Entity
	metrics *metrics.Collector
}

// NewCache returns an empty cache. m may be nil.
func NewCache(m *metrics.Collector) *Cache {
	return &Cache{
		entries: make(map[Key]entity.Entity),
		metrics: m,
	}
}

// Get returns the live instance for k.
func (c *Cache) Get(k Key) (entity.Entity, bool) {
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()

	c.metrics.CacheLookup(ok)
	return e, ok
}

// Put stores e under its own key, replacing any previous instance.
// Entities without a key are ignored.
func (c *Cache) Put(e entity.Entity) {
	if !entity.IsAssigned(e) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[KeyOf(e)] = e
}

// Adopt stores e unless an instance is already cached under its key, and
// returns whichever instance is now canonical. loaded reports whether the
// returned instance was already present.
func (c *Cache) Adopt(e entity.Entity) (canonical entity.Entity, loaded bool) {
	if !entity.IsAssigned(e) {
		return e, false
	}
	k := KeyOf(e)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[k]; ok {
		return existing, true
	}
	c.entries[k] = e
	return e, false
}

// Remove evicts k.
func (c *Cache) Remove(k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, k)
}

// RemoveIf evicts k only while it still maps to e.
func (c *Cache) RemoveIf(k Key, e entity.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[k] == e {
		delete(c.entries, k)
	}
}

// Len returns the number of cached instances.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear evicts everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}
