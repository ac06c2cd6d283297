package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectCache(t *testing.T) {
	cache := NewProjectCache()

	_, ok := cache.Get("s1")
	assert.False(t, ok)

	cache.Set("s1", "alpha")
	project, ok := cache.Get("s1")
	assert.True(t, ok)
	assert.Equal(t, "alpha", project)

	cache.Set("s1", "beta")
	project, _ = cache.Get("s1")
	assert.Equal(t, "beta", project)

	cache.Invalidate("s1")
	_, ok = cache.Get("s1")
	assert.False(t, ok)
}

func TestProjectCache_Concurrent(t *testing.T) {
	cache := NewProjectCache()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Set("s", "p")
				cache.Get("s")
				cache.Invalidate("s")
			}
		}()
	}
	wg.Wait()
}
