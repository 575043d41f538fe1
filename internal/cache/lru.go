// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package cache

import (
	"container/list"
	"sync"
	"time"
)

type lruItem struct {
	key       string
	expiresAt time.Time
}

// LRUCache is a bounded set of recently seen keys with TTL. The event router
// uses it to drop redelivered messages.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recent
	items    map[string]*list.Element
	now      func() time.Time
}

// NewLRUCache creates an LRU set holding at most capacity keys for ttl each.
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LRUCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
		now:      time.Now,
	}
}

// Contains reports whether key was seen and has not expired.
func (c *LRUCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	if c.now().After(el.Value.(*lruItem).expiresAt) {
		c.removeElement(el)
		return false
	}
	return true
}

// IsDuplicate records key and reports whether it had already been seen
// within the TTL.
func (c *LRUCache) IsDuplicate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[key]; ok {
		it := el.Value.(*lruItem)
		if !now.After(it.expiresAt) {
			c.order.MoveToFront(el)
			return true
		}
		it.expiresAt = now.Add(c.ttl)
		c.order.MoveToFront(el)
		return false
	}

	c.items[key] = c.order.PushFront(&lruItem{key: key, expiresAt: now.Add(c.ttl)})
	for c.order.Len() > c.capacity {
		c.removeElement(c.order.Back())
	}
	return false
}

// Remove forgets key.
func (c *LRUCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if ok {
		c.removeElement(el)
	}
	return ok
}

// Len returns the number of tracked keys.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRUCache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*lruItem).key)
}
