// Package cache provides a bounded in-memory cache with FIFO eviction and
// an image cache built on top of it.
package cache

import (
	"container/list"
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNoAccess is returned by the rate helpers before any Get call
var ErrNoAccess = errors.New("cache has not been accessed yet")

// RetrieveFunc loads a value on a cache miss. ok=false means the value
// could not be retrieved; such results are never cached.
type RetrieveFunc[V any] func(ctx context.Context, key string) (value V, ok bool)

// MemoryCache is a bounded key/value cache. Eviction is strict FIFO: the
// oldest inserted entry goes first, reads do not refresh an entry.
type MemoryCache[V any] struct {
	mu       sync.Mutex
	maxItems int
	items    map[string]*list.Element
	order    *list.List // front = oldest insertion
	retrieve RetrieveFunc[V]
	hits     int
	misses   int
}

type entry[V any] struct {
	key   string
	value V
}

// NewMemoryCache creates a cache holding at most maxItems entries.
// A maxItems <= 0 disables eviction.
func NewMemoryCache[V any](maxItems int, retrieve RetrieveFunc[V]) *MemoryCache[V] {
	return &MemoryCache[V]{
		maxItems: maxItems,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		retrieve: retrieve,
	}
}

// Get returns the cached value for key, calling the retrieve function on a
// miss. The retrieve function runs without holding the lock, so concurrent
// misses on different keys do not serialize on the network.
func (c *MemoryCache[V]) Get(ctx context.Context, key string) (V, bool) {
	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.hits++
		value := el.Value.(*entry[V]).value
		c.mu.Unlock()
		return value, true
	}
	c.mu.Unlock()

	value, ok := c.retrieve(ctx, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	if !ok {
		var zero V
		return zero, false
	}
	if el, exists := c.items[key]; exists {
		// Another caller filled it meanwhile, keep its insertion position
		return el.Value.(*entry[V]).value, true
	}
	c.items[key] = c.order.PushBack(&entry[V]{key: key, value: value})
	if c.maxItems > 0 && len(c.items) > c.maxItems {
		c.evictOldest()
	}
	return value, true
}

// Contains reports whether key is cached, without touching the counters
func (c *MemoryCache[V]) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

func (c *MemoryCache[V]) evictOldest() {
	oldest := c.order.Front()
	if oldest == nil {
		return
	}
	c.order.Remove(oldest)
	delete(c.items, oldest.Value.(*entry[V]).key)
}

// Size returns the number of cached entries
func (c *MemoryCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *MemoryCache[V]) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

func (c *MemoryCache[V]) Misses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses
}

// Total is the number of Get calls so far
func (c *MemoryCache[V]) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits + c.misses
}

// HitRate returns the percentage of Get calls served from memory
func (c *MemoryCache[V]) HitRate() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0, ErrNoAccess
	}
	return 100 * c.hits / total, nil
}

// MissRate returns the percentage of Get calls that needed a retrieval
func (c *MemoryCache[V]) MissRate() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0, ErrNoAccess
	}
	return 100 * c.misses / total, nil
}

// RateReporter is a cache that counts its hits and misses
type RateReporter interface {
	HitRate() (int, error)
	MissRate() (int, error)
}

// LogRates logs the hit and miss rates of c. An unused cache only gets a
// debug line.
func LogRates(c RateReporter, name string) {
	hit, err := c.HitRate()
	if errors.Is(err, ErrNoAccess) {
		log.Debug().Str("cache", name).Msg("cache not used")
		return
	}
	miss, _ := c.MissRate()
	log.Info().Str("cache", name).Int("hit_rate", hit).Int("miss_rate", miss).Msg("cache usage")
}
