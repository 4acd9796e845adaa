package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/raine/telegram-nutri-bot/internal/nutrition"
	"github.com/redis/go-redis/v9"
)

const redisNutritionPrefix = "nutrition:"

// RedisCache implements nutrition.CacheStore with one Redis hash per
// normalized food name. Entries have no expiry.
type RedisCache struct {
	client *redis.Client
}

var _ nutrition.CacheStore = (*RedisCache)(nil)

// NewRedisCache connects to the Redis server at url
// (redis://[user:password@]host:port/db).
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func redisKey(key string) string {
	return redisNutritionPrefix + key
}

// GetNutrition returns nil, nil when the key doesn't exist.
func (r *RedisCache) GetNutrition(ctx context.Context, key string) (*nutrition.NutritionRecord, error) {
	vals, err := r.client.HGetAll(ctx, redisKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	rec := nutrition.NutritionRecord{
		Name:    vals["food_name"],
		Product: vals["product_name"],
		Source:  vals["data_source"],
	}
	fields := []struct {
		name string
		dst  *float64
	}{
		{"calories", &rec.Calories},
		{"protein", &rec.Protein},
		{"carbs", &rec.Carbs},
		{"fat", &rec.Fat},
		{"fiber", &rec.Fiber},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(vals[f.name], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s in cache entry %q: %w", f.name, key, err)
		}
		*f.dst = v
	}
	return &rec, nil
}

// UpsertNutrition overwrites the record fields and bumps times_used, which
// starts at 1 for a new key.
func (r *RedisCache) UpsertNutrition(ctx context.Context, key string, rec nutrition.NutritionRecord) error {
	k := redisKey(key)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, k, map[string]any{
		"food_name":    rec.Name,
		"product_name": rec.Product,
		"calories":     formatFloat(rec.Calories),
		"protein":      formatFloat(rec.Protein),
		"carbs":        formatFloat(rec.Carbs),
		"fat":          formatFloat(rec.Fat),
		"fiber":        formatFloat(rec.Fiber),
		"data_source":  rec.Source,
	})
	pipe.HIncrBy(ctx, k, "times_used", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

// IncrementNutritionUsage bumps times_used of an existing entry.
func (r *RedisCache) IncrementNutritionUsage(ctx context.Context, key string) error {
	k := redisKey(key)
	exists, err := r.client.Exists(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("failed to check existence in cache: %w", err)
	}
	if exists == 0 {
		return nil
	}
	if err := r.client.HIncrBy(ctx, k, "times_used", 1).Err(); err != nil {
		return fmt.Errorf("failed to increment cache usage: %w", err)
	}
	return nil
}

// GetNutritionUsage returns times_used for key, or 0 if it doesn't exist.
func (r *RedisCache) GetNutritionUsage(ctx context.Context, key string) (int, error) {
	n, err := r.client.HGet(ctx, redisKey(key), "times_used").Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get cache usage: %w", err)
	}
	return n, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
