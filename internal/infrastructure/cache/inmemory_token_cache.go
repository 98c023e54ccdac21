package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// InMemoryTokenCache implements TokenCache with a map.
// It suits single-instance deployments and tests.
type InMemoryTokenCache struct {
	mu        sync.RWMutex
	entries   map[string]entry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    bool
}

// NewInMemoryTokenCache creates the cache and starts a background sweep of expired entries
func NewInMemoryTokenCache(sweepInterval time.Duration) *InMemoryTokenCache {
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	c := &InMemoryTokenCache{
		entries:  make(map[string]entry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.sweepLoop(sweepInterval)
	return c
}

// Get implements TokenCache
func (c *InMemoryTokenCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return "", false, ErrClosed
	}
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set implements TokenCache. A non-positive ttl deletes the key.
func (c *InMemoryTokenCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if ttl <= 0 {
		delete(c.entries, key)
		return nil
	}
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

// Delete implements TokenCache
func (c *InMemoryTokenCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	delete(c.entries, key)
	return nil
}

// Close stops the sweep goroutine. Safe to call multiple times.
func (c *InMemoryTokenCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
		c.mu.Lock()
		c.closed = true
		c.entries = nil
		c.mu.Unlock()
	})
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *InMemoryTokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemoryTokenCache) sweepLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *InMemoryTokenCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

var _ TokenCache = (*InMemoryTokenCache)(nil)
