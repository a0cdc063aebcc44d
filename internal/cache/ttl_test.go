package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/taxmate/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpires(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC))
	c := NewTTLCacheWithClock[int64, string](fake.Now)

	c.Set(1, "insights", 300*time.Second)
	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "insights", v)

	fake.Advance(299 * time.Second)
	_, ok = c.Get(1)
	assert.True(t, ok)

	fake.Advance(time.Second)
	_, ok = c.Get(1)
	assert.False(t, ok)
}

func TestTTLCacheNoTTLAndDelete(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("k", 1, 0)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestTTLCacheConcurrentAccess(t *testing.T) {
	c := NewTTLCache[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set(i%4, i, time.Minute)
			c.Get(i % 4)
			if i%8 == 0 {
				c.Delete(i % 4)
			}
		}(i)
	}
	wg.Wait()
}
