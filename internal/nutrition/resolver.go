package nutrition

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// LowConfidenceThreshold is the confidence below which a dish is first
	// matched against curated recipes.
	LowConfidenceThreshold = 60

	// MaxIngredientLookups caps the ingredients resolved when the dish
	// itself is unknown.
	MaxIngredientLookups = 5
)

// FoodDatabase is an external food-data source. Both lookups return nil on
// a miss or on any failure.
type FoodDatabase interface {
	LookupByBarcode(ctx context.Context, barcode string) *NutritionRecord
	SearchByName(ctx context.Context, query, brand string) *NutritionRecord
}

// Resolver turns a visual estimate into the best available nutrition data.
//
// Tiers, first hit wins:
//  1. barcode lookup
//  2. curated recipe, only when confidence is below LowConfidenceThreshold
//  3. cache-then-external lookup of the dish, then of its first ingredients
//     (averaged), then the unmodified estimate
type Resolver struct {
	foods  FoodDatabase
	cache  *Cache
	dishes *DishKnowledgeBase
}

// NewResolver creates a Resolver.
func NewResolver(foods FoodDatabase, cache *Cache, dishes *DishKnowledgeBase) *Resolver {
	return &Resolver{foods: foods, cache: cache, dishes: dishes}
}

// Resolve runs the resolution tiers for est. It never fails; the worst case
// is the estimate itself with Enriched set to false.
//
// Once started, a resolution runs to completion even if ctx is cancelled.
// Lookups are bounded by the food database client's own timeout.
func (r *Resolver) Resolve(ctx context.Context, est VisualEstimate) EnrichedResult {
	ctx = context.WithoutCancel(ctx)
	logger := log.With().Str("dish", est.DishName).Int("confidence", est.Confidence).Logger()

	if est.Barcode != "" {
		if rec := r.foods.LookupByBarcode(ctx, est.Barcode); rec != nil {
			r.cache.Put(ctx, *rec)
			logger.Info().Str("barcode", est.Barcode).Str("source", rec.Source).Msg("resolved by barcode")
			return fromRecord(est, rec)
		}
		logger.Debug().Str("barcode", est.Barcode).Msg("barcode not found")
	}

	if est.Confidence < LowConfidenceThreshold {
		if recipe, ok := r.dishes.Lookup(est.DishName); ok {
			logger.Info().Str("recipe", recipe.DishName).Msg("resolved by curated recipe")
			return EnrichedResult{
				Enriched:        true,
				Macros:          recipe.Macros,
				Sources:         []string{recipe.Source + " (typical recipe)"},
				Ingredients:     unionStrings(est.Ingredients, recipe.Ingredients),
				MainIngredients: cloneStrings(recipe.MainIngredients),
			}
		}
	}

	if rec := r.lookupFood(ctx, est.DishName, est.ProductBrand); rec != nil {
		logger.Info().Str("source", rec.Source).Msg("resolved by dish name")
		return fromRecord(est, rec)
	}

	if found := r.lookupIngredients(ctx, est.Ingredients); len(found) > 0 {
		logger.Info().Int("ingredients", len(found)).Msg("resolved by ingredient average")
		return averaged(est, found)
	}

	logger.Info().Msg("no enrichment, keeping visual estimate")
	return EnrichedResult{
		Enriched:        false,
		Macros:          est.Macros,
		Sources:         []string{SourceAIEstimate},
		Ingredients:     cloneStrings(est.Ingredients),
		MainIngredients: cloneStrings(est.MainIngredients),
	}
}

// lookupFood checks the cache before the external database. External hits
// are written back to the cache.
func (r *Resolver) lookupFood(ctx context.Context, name, brand string) *NutritionRecord {
	if NormalizeKey(name) == "" {
		return nil
	}
	if rec, ok := r.cache.Get(ctx, name); ok {
		return rec
	}
	rec := r.foods.SearchByName(ctx, name, brand)
	if rec == nil {
		return nil
	}
	r.cache.Put(ctx, *rec)
	return rec
}

// lookupIngredients resolves up to MaxIngredientLookups ingredients
// concurrently and returns the hits.
func (r *Resolver) lookupIngredients(ctx context.Context, ingredients []string) []*NutritionRecord {
	if len(ingredients) > MaxIngredientLookups {
		ingredients = ingredients[:MaxIngredientLookups]
	}

	results := make([]*NutritionRecord, len(ingredients))
	var g errgroup.Group
	for i, name := range ingredients {
		g.Go(func() error {
			results[i] = r.lookupFood(ctx, name, "")
			return nil
		})
	}
	_ = g.Wait()

	found := results[:0]
	for _, rec := range results {
		if rec != nil {
			found = append(found, rec)
		}
	}
	return found
}

func fromRecord(est VisualEstimate, rec *NutritionRecord) EnrichedResult {
	return EnrichedResult{
		Enriched:        true,
		Macros:          rec.Macros,
		Sources:         []string{rec.Source},
		Ingredients:     cloneStrings(est.Ingredients),
		MainIngredients: cloneStrings(est.MainIngredients),
	}
}

func averaged(est VisualEstimate, recs []*NutritionRecord) EnrichedResult {
	var sum Macros
	sources := make([]string, 0, len(recs))
	for _, rec := range recs {
		sum.Calories += rec.Calories
		sum.Protein += rec.Protein
		sum.Carbs += rec.Carbs
		sum.Fat += rec.Fat
		sum.Fiber += rec.Fiber
		sources = append(sources, rec.Source)
	}

	n := float64(len(recs))
	return EnrichedResult{
		Enriched: true,
		Macros: Macros{
			Calories: math.Round(sum.Calories / n),
			Protein:  math.Round(sum.Protein / n),
			Carbs:    math.Round(sum.Carbs / n),
			Fat:      math.Round(sum.Fat / n),
			Fiber:    math.Round(sum.Fiber / n),
		},
		Sources:         sources,
		Ingredients:     cloneStrings(est.Ingredients),
		MainIngredients: cloneStrings(est.MainIngredients),
	}
}

// unionStrings returns a followed by the entries of b not already present,
// without duplicates.
func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
