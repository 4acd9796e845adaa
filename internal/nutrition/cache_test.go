package nutrition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutThenGet(t *testing.T) {
	store := newMemoryStore()
	cache := NewCache(store)
	ctx := context.Background()

	cache.Put(ctx, NutritionRecord{Name: "  Riz Blanc ", Macros: Macros{Calories: 130}, Source: "Open Food Facts"})

	rec, ok := cache.Get(ctx, "riz blanc")
	require.True(t, ok)
	assert.Equal(t, 130.0, rec.Calories)
	assert.Equal(t, "Open Food Facts", rec.Source)

	cache.Wait()
	assert.Equal(t, 2, store.usageOf("riz blanc"))
}

func TestCache_Miss(t *testing.T) {
	cache := NewCache(newMemoryStore())

	rec, ok := cache.Get(context.Background(), "nothing here")
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestCache_ReadErrorIsMiss(t *testing.T) {
	store := newMemoryStore()
	store.records["fufu"] = NutritionRecord{Name: "fufu"}
	store.failGet = true
	cache := NewCache(store)

	rec, ok := cache.Get(context.Background(), "fufu")
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestCache_WriteErrorIsSwallowed(t *testing.T) {
	store := newMemoryStore()
	store.failPut = true
	cache := NewCache(store)

	assert.NotPanics(t, func() {
		cache.Put(context.Background(), NutritionRecord{Name: "fufu"})
	})
	assert.Empty(t, store.records)
}

func TestCache_IncrementSurvivesCancelledContext(t *testing.T) {
	store := newMemoryStore()
	store.records["garri"] = NutritionRecord{Name: "garri"}
	cache := NewCache(store)

	ctx, cancel := context.WithCancel(context.Background())
	_, ok := cache.Get(ctx, "Garri")
	cancel()
	require.True(t, ok)

	cache.Wait()
	assert.Equal(t, 1, store.usageOf("garri"))
}
