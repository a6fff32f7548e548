package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMissing(t *testing.T) {
	c := New()
	_, ok, fresh := c.Read(CollectionKey("sources"))
	assert.False(t, ok)
	assert.False(t, fresh)
}

func TestWriteThenRead(t *testing.T) {
	c := New()
	c.Write(CollectionKey("sources"), []int{1, 2, 3}, 0)

	value, ok, fresh := c.Read(CollectionKey("sources"))
	require.True(t, ok)
	assert.True(t, fresh, "zero staleAfter means fresh until invalidated")
	assert.Equal(t, []int{1, 2, 3}, value)
}

func TestInvalidateMarksResourceStale(t *testing.T) {
	c := New()
	c.Write(CollectionKey("sources"), "list", 0)
	c.Write(EntityKey("sources", 42), "entity", 0)
	c.Write(CollectionKey("connections"), "other", 0)

	c.Invalidate("sources")

	_, ok, fresh := c.Read(CollectionKey("sources"))
	assert.True(t, ok, "stale value stays readable")
	assert.False(t, fresh)

	_, ok, fresh = c.Read(EntityKey("sources", 42))
	assert.True(t, ok)
	assert.False(t, fresh, "entity entries share the resource tag")

	_, _, fresh = c.Read(CollectionKey("connections"))
	assert.True(t, fresh, "no cross-resource invalidation")
}

func TestInvalidateKey(t *testing.T) {
	c := New()
	c.Write(EntityKey("destinations", 1), "a", 0)
	c.Write(EntityKey("destinations", 2), "b", 0)

	c.InvalidateKey(EntityKey("destinations", 1))

	_, _, fresh := c.Read(EntityKey("destinations", 1))
	assert.False(t, fresh)
	_, _, fresh = c.Read(EntityKey("destinations", 2))
	assert.True(t, fresh)
}

func TestStaleAfterExpiry(t *testing.T) {
	c := New()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Write(CollectionKey("connectionHistories"), "feed", 30*time.Second)

	_, _, fresh := c.Read(CollectionKey("connectionHistories"))
	assert.True(t, fresh)

	now = now.Add(31 * time.Second)
	_, ok, fresh := c.Read(CollectionKey("connectionHistories"))
	assert.True(t, ok)
	assert.False(t, fresh, "entry past its stale window")
}

func TestWriteAfterInvalidateIsFresh(t *testing.T) {
	c := New()
	c.Write(CollectionKey("sources"), "old", 0)
	c.Invalidate("sources")
	c.Write(CollectionKey("sources"), "new", 0)

	value, _, fresh := c.Read(CollectionKey("sources"))
	assert.True(t, fresh)
	assert.Equal(t, "new", value)
}

func TestClear(t *testing.T) {
	c := New()
	c.Write(CollectionKey("sources"), "x", 0)
	c.Clear()
	_, ok, _ := c.Read(CollectionKey("sources"))
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Write(EntityKey("sources", i), i, 0)
		}(i)
		go func(i int) {
			defer wg.Done()
			c.Read(EntityKey("sources", i))
			c.Invalidate("sources")
		}(i)
	}
	wg.Wait()
}
