package llm

import "context"

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// Estimator produces a raw nutrition estimate for a food photo. The returned
// text is model output and must go through ParseVisualEstimate.
type Estimator interface {
	EstimateNutrition(ctx context.Context, imageData []byte, mimeType string) (string, error)
}
