package nutrition

// SourceAIEstimate is the provenance tag of an unverified visual estimate.
const SourceAIEstimate = "AI Estimate"

// Macros holds nutrient values per 100 g.
type Macros struct {
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
	Fiber    float64
}

// VisualEstimate is the structured output of the vision model, before any
// enrichment.
type VisualEstimate struct {
	DishName             string
	Ingredients          []string
	MainIngredients      []string
	Macros               Macros
	EstimatedWeightGrams float64
	Confidence           int
	Barcode              string // Empty when no barcode was read
	ProductBrand         string // Empty when no brand was read
}

// NutritionRecord is a resolved nutrition fact about one food item.
type NutritionRecord struct {
	Name    string // Lookup name; normalized, it is the cache key
	Product string // Upstream product name, informational only
	Macros
	Source string
}

// EnrichedResult is the outcome of resolving a VisualEstimate.
type EnrichedResult struct {
	Enriched        bool
	Macros          Macros
	Sources         []string
	Ingredients     []string
	MainIngredients []string
}
