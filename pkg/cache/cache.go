// Package cache is the client's keyed store of query results. One instance
// per client session; mutations invalidate entries by resource tag, which
// forces dependent queries to refetch.
package cache

import (
	"sync"
	"time"
)

// Key addresses one cached query result. ID zero addresses the resource's
// collection entry.
type Key struct {
	Resource string
	ID       int
}

// CollectionKey returns the key for a resource's fetch-all entry.
func CollectionKey(resource string) Key {
	return Key{Resource: resource}
}

// EntityKey returns the key for a single entity's fetch-one entry.
func EntityKey(resource string, id int) Key {
	return Key{Resource: resource, ID: id}
}

type entry struct {
	value       any
	fetchedAt   time.Time
	staleAfter  time.Duration // 0 means fresh until invalidated
	invalidated bool
}

// Cache is a tag-invalidated in-memory query store, safe for concurrent
// use. It never fetches anything itself; services write results in and read
// them back while fresh.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	now     func() time.Time
}

// New returns an empty cache. Construct one per application session instead
// of sharing an ambient singleton, so tests stay isolated.
func New() *Cache {
	return &Cache{
		entries: make(map[Key]*entry),
		now:     time.Now,
	}
}

// Write stores a query result. A zero staleAfter keeps the entry fresh until
// it is explicitly invalidated.
func (c *Cache) Write(key Key, value any, staleAfter time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		value:      value,
		fetchedAt:  c.now(),
		staleAfter: staleAfter,
	}
}

// Read returns the stored value for key along with whether it is present
// and whether it is still fresh. Stale values remain readable so a consumer
// can keep rendering them while a refetch is in flight.
func (c *Cache) Read(key Key) (value any, ok bool, fresh bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, false
	}

	fresh = !e.invalidated
	if fresh && e.staleAfter > 0 && c.now().After(e.fetchedAt.Add(e.staleAfter)) {
		fresh = false
	}
	return e.value, true, fresh
}

// Invalidate marks every entry tagged with resource as stale: the collection
// entry and all entity entries. Values are kept for stale reads.
func (c *Cache) Invalidate(resource string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if key.Resource == resource {
			e.invalidated = true
		}
	}
}

// InvalidateKey marks a single entry as stale.
func (c *Cache) InvalidateKey(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.invalidated = true
	}
}

// Clear drops every entry. Used on sign-out.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]*entry)
}
