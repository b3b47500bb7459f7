package template

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CachingSource keeps recently fetched templates in memory. Concurrent
// misses for the same reference share a single fetch. Every caller gets its
// own copy of the bytes.
type CachingSource struct {
	next  Source
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mutex    sync.RWMutex
	capacity int
	items    map[string]*cacheNode
	head     *cacheNode // Most recently used
	tail     *cacheNode // Least recently used
	hits     int64
	misses   int64
}

// cacheNode represents a node in the doubly-linked list
type cacheNode struct {
	key      string
	value    []byte
	storedAt time.Time
	prev     *cacheNode
	next     *cacheNode
}

// CacheStats provides statistics about cache performance
type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate_percent"`
	Size     int     `json:"current_size"`
	Capacity int     `json:"max_capacity"`
}

// NewCachingSource wraps next with an LRU cache of capacity templates. A
// positive ttl expires entries so edited templates are picked up.
func NewCachingSource(next Source, capacity int, ttl time.Duration) *CachingSource {
	if capacity <= 0 {
		capacity = 16
	}

	cache := &CachingSource{
		next:     next,
		ttl:      ttl,
		now:      time.Now,
		capacity: capacity,
		items:    make(map[string]*cacheNode),
	}

	// Initialize dummy head and tail nodes
	cache.head = &cacheNode{}
	cache.tail = &cacheNode{}
	cache.head.next = cache.tail
	cache.tail.prev = cache.head

	return cache
}

// Fetch implements Source. The shared fetch is detached from any one
// caller's cancellation; each caller waits only as long as its own ctx.
func (c *CachingSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if data, ok := c.get(ref); ok {
		return clone(data), nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(ref, func() (any, error) {
		// Another caller may have filled the entry while we waited
		if data, ok := c.peek(ref); ok {
			return data, nil
		}
		data, err := c.next.Fetch(shared, ref)
		if err != nil {
			return nil, err
		}
		c.put(ref, data)
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]byte)), nil
	}
}

// Invalidate drops ref from the cache
func (c *CachingSource) Invalidate(ref string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, exists := c.items[ref]; exists {
		c.removeNode(node)
		delete(c.items, ref)
		return true
	}
	return false
}

// Len returns the current number of cached templates
func (c *CachingSource) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// Stats returns cache statistics
func (c *CachingSource) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	total := c.hits + c.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return CacheStats{
		Hits:     c.hits,
		Misses:   c.misses,
		HitRate:  hitRate,
		Size:     len(c.items),
		Capacity: c.capacity,
	}
}

func (c *CachingSource) get(key string) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, exists := c.items[key]; exists {
		if c.expired(node) {
			c.removeNode(node)
			delete(c.items, key)
		} else {
			c.moveToFront(node)
			c.hits++
			return node.value, true
		}
	}

	c.misses++
	return nil, false
}

func (c *CachingSource) peek(key string) ([]byte, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if node, exists := c.items[key]; exists && !c.expired(node) {
		return node.value, true
	}
	return nil, false
}

func (c *CachingSource) put(key string, value []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, exists := c.items[key]; exists {
		node.value = value
		node.storedAt = c.now()
		c.moveToFront(node)
		return
	}

	node := &cacheNode{
		key:      key,
		value:    value,
		storedAt: c.now(),
	}
	c.addToFront(node)
	c.items[key] = node

	if len(c.items) > c.capacity {
		c.evictLRU()
	}
}

func (c *CachingSource) expired(node *cacheNode) bool {
	return c.ttl > 0 && c.now().Sub(node.storedAt) > c.ttl
}

// moveToFront moves a node to the front of the list (most recently used)
func (c *CachingSource) moveToFront(node *cacheNode) {
	c.removeNode(node)
	c.addToFront(node)
}

// addToFront adds a node right after the head (most recently used position)
func (c *CachingSource) addToFront(node *cacheNode) {
	node.prev = c.head
	node.next = c.head.next
	c.head.next.prev = node
	c.head.next = node
}

// removeNode removes a node from the doubly-linked list
func (c *CachingSource) removeNode(node *cacheNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
}

// evictLRU removes the least recently used item
func (c *CachingSource) evictLRU() {
	lru := c.tail.prev
	if lru != c.head {
		c.removeNode(lru)
		delete(c.items, lru.key)
	}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
