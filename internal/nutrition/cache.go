package nutrition

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// CacheStore is the durable key-value store behind Cache. Keys are
// normalized food names. GetNutrition returns nil, nil on a miss.
type CacheStore interface {
	GetNutrition(ctx context.Context, key string) (*NutritionRecord, error)
	// UpsertNutrition stores the record under key, overwriting macros and
	// source. New entries start with a usage count of 1, existing entries
	// are incremented.
	UpsertNutrition(ctx context.Context, key string, record NutritionRecord) error
	IncrementNutritionUsage(ctx context.Context, key string) error
}

// Cache is a best-effort nutrition cache. Store failures never reach the
// caller: reads degrade to misses and writes are dropped.
type Cache struct {
	store CacheStore
	wg    sync.WaitGroup
}

// NewCache creates a cache backed by store.
func NewCache(store CacheStore) *Cache {
	return &Cache{store: store}
}

// Get looks up a record by name. On a hit the usage counter is incremented
// in the background.
func (c *Cache) Get(ctx context.Context, name string) (*NutritionRecord, bool) {
	key := NormalizeKey(name)
	if key == "" {
		return nil, false
	}

	rec, err := c.store.GetNutrition(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("nutrition cache read failed")
		return nil, false
	}
	if rec == nil {
		return nil, false
	}

	log.Debug().Str("key", key).Str("source", rec.Source).Msg("nutrition cache hit")

	c.wg.Add(1)
	go func(ctx context.Context) {
		defer c.wg.Done()
		if err := c.store.IncrementNutritionUsage(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to increment nutrition cache usage")
		}
	}(context.WithoutCancel(ctx))

	return rec, true
}

// Put stores a record under its normalized name.
func (c *Cache) Put(ctx context.Context, rec NutritionRecord) {
	key := NormalizeKey(rec.Name)
	if key == "" {
		return
	}
	if err := c.store.UpsertNutrition(ctx, key, rec); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to write nutrition cache")
	}
}

// Wait blocks until pending usage increments have finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}
