package cache

import (
	"crypto/md5"
	"fmt"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/analysis"
)

const defaultSweepInterval = 5 * time.Minute

// Metrics receives hit and miss notifications
type Metrics interface {
	IncrementCacheHit()
	IncrementCacheMiss()
}

// CacheItem represents a cached report with expiration
type CacheItem struct {
	Report    analysis.Report
	ExpiresAt time.Time
}

func (c *CacheItem) expiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Cache provides thread-safe report caching with TTL
type Cache struct {
	mu      sync.RWMutex
	items   map[string]*CacheItem
	ttl     time.Duration
	metrics Metrics
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Cache
type Option func(*Cache)

// WithMetrics records hits and misses on m
func WithMetrics(m Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a new cache with the specified TTL and starts the
// expiry sweeper. Call Close to stop it.
func NewCache(ttl time.Duration, opts ...Option) *Cache {
	cache := &Cache{
		items: make(map[string]*CacheItem),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(cache)
	}

	go cache.sweep(defaultSweepInterval)

	return cache
}

// KeyFor derives the cache key for a token. Reports depend only on the
// token, so identifiers that share one share an entry.
func KeyFor(token string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(token)))
}

func (c *Cache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) removeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, item := range c.items {
		if item.expiredAt(now) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Get retrieves a report from the cache
func (c *Cache) Get(key string) (analysis.Report, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	expired := exists && item.expiredAt(c.now())
	c.mu.RUnlock()

	if !exists || expired {
		if expired {
			c.mu.Lock()
			if current, ok := c.items[key]; ok && current == item {
				delete(c.items, key)
			}
			c.mu.Unlock()
		}
		if c.metrics != nil {
			c.metrics.IncrementCacheMiss()
		}
		return analysis.Report{}, false
	}

	if c.metrics != nil {
		c.metrics.IncrementCacheHit()
	}
	return item.Report, true
}

// Set stores a report in the cache
func (c *Cache) Set(key string, report analysis.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &CacheItem{
		Report:    report,
		ExpiresAt: c.now().Add(c.ttl),
	}
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*CacheItem)
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	totalItems := len(c.items)
	expiredItems := 0

	for _, item := range c.items {
		if item.expiredAt(now) {
			expiredItems++
		}
	}

	return map[string]interface{}{
		"total_items":   totalItems,
		"expired_items": expiredItems,
		"active_items":  totalItems - expiredItems,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}

// Close stops the expiry sweeper. It is safe to call more than once.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	return nil
}
