package di

import (
	"context"
	"sync"
	"time"
)

// InMemoryCache is a TTL cache backing ports.Cache
type InMemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

type cacheItem struct {
	value     interface{}
	expiresAt time.Time
}

// NewInMemoryCache creates a cache that sweeps expired entries every
// sweepEvery. A non-positive sweepEvery disables the sweeper; expired
// entries are still never returned.
func NewInMemoryCache(sweepEvery time.Duration) *InMemoryCache {
	cache := &InMemoryCache{
		items: make(map[string]cacheItem),
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	if sweepEvery > 0 {
		go cache.cleanupExpired(sweepEvery)
	}

	return cache
}

// Get retrieves a value from cache
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists {
		return nil, false
	}

	if !c.now().Before(item.expiresAt) {
		return nil, false
	}

	return item.value, true
}

// Set stores a value in cache with TTL in seconds
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheItem{
		value:     value,
		expiresAt: c.now().Add(time.Duration(ttl) * time.Second),
	}

	return nil
}

// Delete removes a value from cache
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Clear removes all values from cache
func (c *InMemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]cacheItem)
	return nil
}

// Close stops the sweeper. It is safe to call more than once.
func (c *InMemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// cleanupExpired periodically removes expired items
func (c *InMemoryCache) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *InMemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, key)
		}
	}
}
