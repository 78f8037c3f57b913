package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupCache_SeenAfterMark(t *testing.T) {
	c := NewDedupCache(time.Hour, 100)

	assert.False(t, c.Seen(1, "wamid.A"))
	c.Mark(1, "wamid.A")
	assert.True(t, c.Seen(1, "wamid.A"))
}

func TestDedupCache_KeysAreOrganizationScoped(t *testing.T) {
	c := NewDedupCache(time.Hour, 100)

	c.Mark(1, "wamid.A")
	assert.True(t, c.Seen(1, "wamid.A"))
	assert.False(t, c.Seen(2, "wamid.A"))
}

func TestDedupCache_EntriesExpire(t *testing.T) {
	c := NewDedupCache(time.Hour, 100)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Mark(1, "wamid.A")
	assert.True(t, c.Seen(1, "wamid.A"))

	current = current.Add(2 * time.Hour)
	assert.False(t, c.Seen(1, "wamid.A"))
	assert.Equal(t, 0, c.GetStats().Size, "expired entry is removed on access")
}

func TestDedupCache_FullCacheSweepsExpired(t *testing.T) {
	c := NewDedupCache(time.Hour, 3)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Mark(1, "wamid.A")
	c.Mark(1, "wamid.B")
	c.Mark(1, "wamid.C")
	assert.Equal(t, 3, c.GetStats().Size)

	current = current.Add(2 * time.Hour)
	c.Mark(1, "wamid.D")
	assert.True(t, c.Seen(1, "wamid.D"))
	assert.Equal(t, 1, c.GetStats().Size)
}

func TestDedupCache_FullCacheDropsNewEntry(t *testing.T) {
	c := NewDedupCache(time.Hour, 3)

	c.Mark(1, "wamid.A")
	c.Mark(1, "wamid.B")
	c.Mark(1, "wamid.C")
	c.Mark(1, "wamid.D")

	assert.False(t, c.Seen(1, "wamid.D"), "no live entry may be evicted for a new one")
	assert.Equal(t, 3, c.GetStats().Size)
}

func TestDedupCache_GetStats(t *testing.T) {
	c := NewDedupCache(time.Hour, 100)

	c.Mark(1, "wamid.A")
	assert.True(t, c.Seen(1, "wamid.A"))
	assert.True(t, c.Seen(1, "wamid.A"))
	assert.False(t, c.Seen(1, "wamid.B"))

	stats := c.GetStats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
	assert.Equal(t, 1, stats.Size)
}

func TestDedupCache_ConcurrentAccess(t *testing.T) {
	c := NewDedupCache(time.Hour, 10_000)

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("wamid.%d.%d", g, i)
				c.Mark(int64(g), id)
				c.Seen(int64(g), id)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}

	assert.Equal(t, 8*200, c.GetStats().Size)
}
