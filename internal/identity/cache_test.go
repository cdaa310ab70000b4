package identity

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/metrics"
)

func record(typ string, id int64) *entity.Record {
	r := entity.NewRecord(typ)
	r.SetPrimaryKey(id)
	return r
}

func TestPutGet(t *testing.T) {
	c := NewCache(nil)
	r := record("Item", 1)
	c.Put(r)

	got, ok := c.Get(Key{Type: "Item", ID: 1})
	require.True(t, ok)
	assert.Same(t, r, got)

	_, ok = c.Get(Key{Type: "Item", ID: 2})
	assert.False(t, ok)
	_, ok = c.Get(Key{Type: "Order", ID: 1})
	assert.False(t, ok)
}

func TestPutIgnoresUnassigned(t *testing.T) {
	c := NewCache(nil)
	c.Put(entity.NewRecord("Item"))
	c.Put(nil)
	assert.Equal(t, 0, c.Len())
}

func TestPutOverwrites(t *testing.T) {
	c := NewCache(nil)
	first, second := record("Item", 1), record("Item", 1)
	c.Put(first)
	c.Put(second)

	got, _ := c.Get(KeyOf(first))
	assert.Same(t, second, got)
	assert.Equal(t, 1, c.Len())
}

func TestAdopt(t *testing.T) {
	c := NewCache(nil)
	first, second := record("Item", 1), record("Item", 1)

	got, loaded := c.Adopt(first)
	assert.False(t, loaded)
	assert.Same(t, first, got)

	got, loaded = c.Adopt(second)
	assert.True(t, loaded)
	assert.Same(t, first, got)
}

func TestRemove(t *testing.T) {
	c := NewCache(nil)
	r := record("Item", 3)
	c.Put(r)
	c.Remove(KeyOf(r))
	_, ok := c.Get(KeyOf(r))
	assert.False(t, ok)
}

func TestRemoveIf(t *testing.T) {
	c := NewCache(nil)
	first, second := record("Item", 1), record("Item", 1)
	c.Put(second)

	c.RemoveIf(KeyOf(first), first)
	assert.Equal(t, 1, c.Len())

	c.RemoveIf(KeyOf(second), second)
	assert.Equal(t, 0, c.Len())
}

func TestClear(t *testing.T) {
	c := NewCache(nil)
	c.Put(record("Item", 1))
	c.Put(record("Item", 2))
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentAdoptConverges(t *testing.T) {
	c := NewCache(nil)
	const n = 32

	results := make([]entity.Entity, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = c.Adopt(record("Item", 7))
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.New(nil)
	c := NewCache(m)
	c.Put(record("Item", 1))

	c.Get(Key{Type: "Item", ID: 1})
	c.Get(Key{Type: "Item", ID: 2})
	c.Get(Key{Type: "Item", ID: 3})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMisses))
}
