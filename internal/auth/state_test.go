package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateCache(t *testing.T) {
	t.Parallel()

	cache := newStateCache(time.Minute)
	defer cache.Close()

	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	fresh := cache.issue()
	stale := cache.issue()
	assert.NotEqual(t, fresh, stale)
	assert.Equal(t, 2, cache.size())

	assert.True(t, cache.consume(fresh))
	assert.False(t, cache.consume(fresh), "state is single use")
	assert.False(t, cache.consume(""))
	assert.False(t, cache.consume("never-issued"))

	now = now.Add(2 * time.Minute)
	assert.False(t, cache.consume(stale), "expired state")
	assert.Zero(t, cache.size())
}

func TestStateCache_Evict(t *testing.T) {
	t.Parallel()

	cache := newStateCache(time.Minute)
	defer cache.Close()

	now := time.Now()
	cache.now = func() time.Time { return now }

	for range 5 {
		cache.issue()
	}
	now = now.Add(time.Hour)
	cache.evict()

	assert.Zero(t, cache.size())
}

func TestStateCache_ConcurrentIssueAndConsume(t *testing.T) {
	t.Parallel()

	cache := newStateCache(0)
	defer cache.Close()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				assert.True(t, cache.consume(cache.issue()))
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, cache.size())
	cache.Close()
}
