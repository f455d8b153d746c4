package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// stateCache holds outstanding OAuth state values. Each state may be consumed once.
type stateCache struct {
	entries map[string]time.Time
	stopCh  chan struct{}
	now     func() time.Time
	ttl     time.Duration
	mu      sync.Mutex
	once    sync.Once
}

func newStateCache(ttl time.Duration) *stateCache {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	cache := &stateCache{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// issue creates and remembers a new random state.
func (c *stateCache) issue() string {
	state := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[state] = c.now().Add(c.ttl)

	return state
}

// consume reports whether state was issued and is still live, and forgets it.
func (c *stateCache) consume(state string) bool {
	if state == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.entries[state]
	if !ok {
		return false
	}
	delete(c.entries, state)

	return c.now().Before(expiry)
}

func (c *stateCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cleanup periodically removes expired entries.
func (c *stateCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.evict()
		}
	}
}

func (c *stateCache) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for state, expiry := range c.entries {
		if !now.Before(expiry) {
			delete(c.entries, state)
		}
	}
}

// Close stops the cleanup goroutine.
func (c *stateCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
