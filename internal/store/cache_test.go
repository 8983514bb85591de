package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filecat/internal/testutil"
)

func newTestCache(t *testing.T, capacity int) (*Cache, *testutil.StubClock) {
	t.Helper()
	clock := testutil.FixedClock()
	c, err := NewCache(capacity, clock)
	require.NoError(t, err)
	return c, clock
}

func TestCache_Expiration(t *testing.T) {
	c, clock := newTestCache(t, 10)

	c.Set("abs", 1, EntryOptions{Absolute: time.Minute})
	c.Set("slide", 2, EntryOptions{Sliding: time.Minute})

	clock.Advance(50 * time.Second)
	_, ok := c.Get("slide") // refreshes the window
	assert.True(t, ok)

	clock.Advance(20 * time.Second)
	_, ok = c.Get("abs")
	assert.False(t, ok, "absolute expiry is not extended by access")
	_, ok = c.Get("slide")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok = c.Get("slide")
	assert.False(t, ok)
}

func TestCache_EvictsLowestPriorityFirst(t *testing.T) {
	c, _ := newTestCache(t, 3)

	c.Set("high", 1, EntryOptions{Priority: PriorityHigh})
	c.Set("low", 2, EntryOptions{Priority: PriorityLow})
	c.Set("normal", 3, EntryOptions{Priority: PriorityNormal})
	c.Set("new", 4, EntryOptions{Priority: PriorityNormal})

	_, ok := c.Get("low")
	assert.False(t, ok)
	for _, key := range []string{"high", "normal", "new"} {
		_, ok := c.Get(key)
		assert.True(t, ok, key)
	}
	assert.Equal(t, 3, c.Len())
}

func TestCache_NeverRemoveSurvivesPressure(t *testing.T) {
	c, _ := newTestCache(t, 2)
	c.Set("pinned", 1, EntryOptions{Priority: PriorityNeverRemove})
	for _, key := range []string{"a", "b", "c", "d"} {
		c.Set(key, key, EntryOptions{Priority: PriorityHigh})
	}
	_, ok := c.Get("pinned")
	assert.True(t, ok)
}

func TestCache_InvalidateByTag(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Set("files:1", 1, EntryOptions{Tags: []string{TagFiles}})
	c.Set("categories", 2, EntryOptions{Tags: []string{TagCategories}})
	c.Set("configs:dev", 3, EntryOptions{Tags: []string{TagConfigs}, Priority: PriorityNeverRemove})

	c.Invalidate(TagFiles)
	_, ok := c.Get("files:1")
	assert.False(t, ok)
	_, ok = c.Get("categories")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Generation(TagFiles))

	c.InvalidateStrategy(InvalidateConfigurations)
	_, ok = c.Get("configs:dev")
	assert.False(t, ok)

	c.InvalidateStrategy(InvalidateAll)
	assert.Equal(t, 0, c.Len())
}

func TestFetch(t *testing.T) {
	c, _ := newTestCache(t, 10)
	opts := EntryOptions{Tags: []string{TagFiles}}
	calls := 0
	load := func() (string, error) {
		calls++
		return "fresh", nil
	}

	t.Run("caches", func(t *testing.T) {
		v, err := Fetch(c, "k", opts, load)
		require.NoError(t, err)
		assert.Equal(t, "fresh", v)
		v, err = Fetch(c, "k", opts, load)
		require.NoError(t, err)
		assert.Equal(t, "fresh", v)
		assert.Equal(t, 1, calls)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		_, err := Fetch(c, "bad", opts, func() (string, error) { return "", errors.New("boom") })
		assert.Error(t, err)
		_, ok := c.Get("bad")
		assert.False(t, ok)
	})

	t.Run("load racing an invalidation is not stored", func(t *testing.T) {
		v, err := Fetch(c, "raced", opts, func() (string, error) {
			c.Invalidate(TagFiles)
			return "stale", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "stale", v)
		_, ok := c.Get("raced")
		assert.False(t, ok)
	})
}
