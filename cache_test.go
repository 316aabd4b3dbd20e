package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheBasicOperations(t *testing.T) {
	const capacity = 10
	cache := NewSimpleCache[string](capacity)

	items := []string{"item1", "item2", "item3", "item4", "item5"}
	indices := make([]int, len(items))

	for i, item := range items {
		index, err := cache.Register(item, item)
		require.NoError(t, err)
		indices[i] = index
		assert.Equal(t, i, index)
	}

	for i, item := range items {
		index, found := cache.GetIndex(item)
		require.True(t, found)
		assert.Equal(t, indices[i], index)
	}

	for i, item := range items {
		assert.Equal(t, item, *cache.GetItem(indices[i]))
		assert.Equal(t, item, *cache.GetItem32(uint32(indices[i])))
	}

	_, found := cache.GetIndex("nonexistent")
	assert.False(t, found)
}

func TestCacheCapacity(t *testing.T) {
	const capacity = 5
	cache := NewSimpleCache[int](capacity)

	for i := 0; i < capacity; i++ {
		key := "item" + string(rune(i+'0'))
		_, err := cache.Register(key, i)
		require.NoError(t, err)
	}

	_, err := cache.Register("overflow", 100)
	assert.Error(t, err)
}

func TestCacheReRegisterUpdatesInPlace(t *testing.T) {
	cache := NewSimpleCache[int](4)
	idx, err := cache.Register("a", 1)
	require.NoError(t, err)

	idx2, err := cache.Register("a", 2)
	require.NoError(t, err)
	assert.Equal(t, idx, idx2, "re-registering an existing key must not consume a new slot")
	assert.Equal(t, 2, *cache.GetItem(idx))
}

func TestCacheClear(t *testing.T) {
	cache := NewSimpleCache[string](10)

	items := []string{"item1", "item2", "item3"}
	for _, item := range items {
		_, err := cache.Register(item, item)
		require.NoError(t, err)
	}

	cache.Clear()
	assert.Equal(t, 0, cache.Len())

	for _, item := range items {
		_, found := cache.GetIndex(item)
		assert.False(t, found)
	}

	for _, item := range items {
		_, err := cache.Register(item, item)
		require.NoError(t, err)
	}
	assert.Equal(t, len(items), cache.Len())
}

func TestCacheWithComplexTypes(t *testing.T) {
	type point struct{ X, Y float64 }
	cache := NewSimpleCache[point](10)

	points := []point{{1, 2}, {3, 4}, {5, 6}}
	keys := []string{"p1", "p2", "p3"}

	for i, p := range points {
		_, err := cache.Register(keys[i], p)
		require.NoError(t, err)
	}

	for i, key := range keys {
		index, found := cache.GetIndex(key)
		require.True(t, found)
		got := cache.GetItem(index)
		assert.Equal(t, points[i], *got)
	}
}
