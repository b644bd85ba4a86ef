// Package cache holds the client's ordered copy of the backend's friction items.
package cache

import (
	"sync"

	"github.com/TobiSchelling/FrictionLog/internal/friction"
)

// Items is an ordered, id-unique collection of friction items.
// Newly created items go to the front. It never talks to the backend.
type Items struct {
	mu    sync.RWMutex
	items []friction.Item
}

// New returns an empty cache.
func New() *Items {
	return &Items{}
}

// InsertFront puts item at the head. An existing entry with the same id is dropped first.
func (c *Items) InsertFront(item friction.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(item.ID); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
	c.items = append([]friction.Item{item}, c.items...)
}

// Replace swaps the entry with item's id in place. It reports false if the id is absent.
func (c *Items) Replace(item friction.Item) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(item.ID)
	if i < 0 {
		return false
	}
	c.items[i] = item
	return true
}

// Remove deletes the entry with id. It reports whether anything was removed.
func (c *Items) Remove(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

// ReplaceAll swaps the whole collection, keeping the first occurrence of any repeated id.
func (c *Items) ReplaceAll(items []friction.Item) {
	seen := make(map[int64]struct{}, len(items))
	next := make([]friction.Item, 0, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		next = append(next, it)
	}

	c.mu.Lock()
	c.items = next
	c.mu.Unlock()
}

// Get returns the cached item with id.
func (c *Items) Get(id int64) (friction.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexOf(id)
	if i < 0 {
		return friction.Item{}, false
	}
	return c.items[i], true
}

// List returns a copy of the items in cache order.
func (c *Items) List() []friction.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]friction.Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of cached items.
func (c *Items) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Items) indexOf(id int64) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}
