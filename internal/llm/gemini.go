package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.30
	geminiOutputPricePerMillion = 2.50
)

const nutritionPrompt = `You are a nutrition expert specialised in African cuisine, in particular West African dishes. Analyse the food in this image.

First decide what the image shows:
- A packaged product (wrapper, box or label visible): read the product name, brand, ingredient list and any nutrition table on the packaging. If a barcode is legible, read its digits.
- A prepared dish (plate, bowl, served food): identify the dish. Take care with regional staples: attiéké is granular cassava couscous (not wheat couscous), fufu is smooth pounded yam or cassava, garri is granular cassava flakes, plantain is larger than banana, jollof rice is orange-red, thiéboudienne is Senegalese fish and rice, mafé is a peanut stew, ndolé is a bitter-leaf stew.

Rules:
- List only ingredients you can clearly see or read on the packaging. Do not guess hidden ingredients.
- mainIngredients are the 2-4 most prominent ingredients and must also appear in ingredients.
- All nutrient values are per 100 g.
- estimatedWeight is the total portion weight in grams, judged from plate and portion size (typical portions are 200-400 g). Be conservative.
- confidence is your confidence in the identification, an integer from 0 to 100.

Respond ONLY with a JSON object of this shape, no markdown or other text:
{"dishName": "...", "calories": 0, "protein": 0, "carbs": 0, "fat": 0, "fiber": 0, "ingredients": ["..."], "mainIngredients": ["..."], "estimatedWeight": 0, "confidence": 0, "barcode": "", "productBrand": ""}

Use an empty string for barcode and productBrand when none is visible.`

// GeminiEstimator uses Google's Gemini API to estimate nutrition from photos.
type GeminiEstimator struct {
	client *genai.Client
	model  string
}

// NewGeminiEstimator creates a Gemini-based estimator. An empty model selects
// DefaultGeminiModel.
func NewGeminiEstimator(ctx context.Context, apiKey, model string) (*GeminiEstimator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiEstimator{client: client, model: model}, nil
}

// EstimateNutrition implements the Estimator interface using Gemini.
func (g *GeminiEstimator) EstimateNutrition(ctx context.Context, imageData []byte, mimeType string) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("no image provided")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	parts := []*genai.Part{
		genai.NewPartFromText(nutritionPrompt),
		{InlineData: &genai.Blob{Data: imageData, MIMEType: mimeType}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini")
	}

	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateGeminiCost(usage.InputTokens, usage.OutputTokens, geminiInputPricePerMillion, geminiOutputPricePerMillion)
	}

	log.Info().
		Str("model", g.model).
		Int("imageBytes", len(imageData)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("vision llm call")

	return result.Text(), nil
}

func calculateGeminiCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}
