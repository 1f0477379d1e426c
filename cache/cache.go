/*
Package cache provides a small TTL cache for import history pages.

The audit log is append-only and read far more often than it changes, so
history responses are cached briefly; the short TTL bounds staleness.
*/
package cache

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jobwire-io/job-import-backend/types"
)

// HistoryPage is one cached page of the import audit log.
type HistoryPage struct {
	Logs  []types.ImportLog
	Total int64
}

// entry is a cached page with its expiry.
type entry struct {
	page      *HistoryPage
	expiresAt time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// HistoryCache is an in-memory TTL cache for history pages.
type HistoryCache struct {
	mu     sync.RWMutex
	items  map[string]*entry
	ttl    time.Duration
	logger *logrus.Logger
	quit   chan struct{}
	once   sync.Once
}

// NewHistoryCache creates a cache whose entries expire after ttl. A
// background janitor evicts expired entries.
func NewHistoryCache(ttl time.Duration, logger *logrus.Logger) *HistoryCache {
	c := &HistoryCache{
		items:  make(map[string]*entry),
		ttl:    ttl,
		logger: logger,
		quit:   make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get returns the cached page for key, if present and fresh.
func (c *HistoryCache) Get(key string) (*HistoryPage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.items[key]
	if !exists || e.expired() {
		return nil, false
	}
	return e.page, true
}

// Set stores a page under key with the cache's TTL.
func (c *HistoryCache) Set(key string, page *HistoryPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &entry{page: page, expiresAt: time.Now().Add(c.ttl)}
}

// Clear drops every cached page.
func (c *HistoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry)
}

// Stop terminates the janitor goroutine.
func (c *HistoryCache) Stop() {
	c.once.Do(func() { close(c.quit) })
}

func (c *HistoryCache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.quit:
			return
		case <-ticker.C:
			c.mu.Lock()
			removed := 0
			for key, e := range c.items {
				if e.expired() {
					delete(c.items, key)
					removed++
				}
			}
			c.mu.Unlock()
			if removed > 0 && c.logger != nil {
				c.logger.WithField("removed_count", removed).Debug("Evicted expired history cache entries")
			}
		}
	}
}
