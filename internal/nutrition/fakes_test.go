package nutrition

import (
	"context"
	"errors"
	"sync"
)

// memoryStore is an in-memory CacheStore.
type memoryStore struct {
	mu      sync.Mutex
	records map[string]NutritionRecord
	usage   map[string]int
	failGet bool
	failPut bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records: make(map[string]NutritionRecord),
		usage:   make(map[string]int),
	}
}

func (m *memoryStore) GetNutrition(ctx context.Context, key string) (*NutritionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("store unavailable")
	}
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memoryStore) UpsertNutrition(ctx context.Context, key string, rec NutritionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return errors.New("store unavailable")
	}
	m.records[key] = rec
	m.usage[key]++
	return nil
}

func (m *memoryStore) IncrementNutritionUsage(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[key]++
	return nil
}

func (m *memoryStore) usageOf(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[key]
}

// fakeFoods is a FoodDatabase backed by maps, counting calls. Like the real
// client, it misses when ctx is already done.
type fakeFoods struct {
	mu          sync.Mutex
	barcodes    map[string]NutritionRecord
	products    map[string]NutritionRecord
	searches    []string
	brands      []string
	barcodeHits int
}

func newFakeFoods() *fakeFoods {
	return &fakeFoods{
		barcodes: make(map[string]NutritionRecord),
		products: make(map[string]NutritionRecord),
	}
}

func (f *fakeFoods) LookupByBarcode(ctx context.Context, barcode string) *NutritionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.barcodeHits++
	rec, ok := f.barcodes[barcode]
	if !ok || ctx.Err() != nil {
		return nil
	}
	return &rec
}

func (f *fakeFoods) SearchByName(ctx context.Context, query, brand string) *NutritionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, query)
	f.brands = append(f.brands, brand)
	rec, ok := f.products[query]
	if !ok || ctx.Err() != nil {
		return nil
	}
	return &rec
}

func (f *fakeFoods) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches)
}
