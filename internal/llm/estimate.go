package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/raine/telegram-nutri-bot/internal/nutrition"
)

// MalformedEstimateError reports vision model output that does not contain a
// usable nutrition estimate.
type MalformedEstimateError struct {
	Reason string
	Err    error
}

func (e *MalformedEstimateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed nutrition estimate: %s: %v", e.Reason, e.Err)
	}
	return "malformed nutrition estimate: " + e.Reason
}

func (e *MalformedEstimateError) Unwrap() error {
	return e.Err
}

func malformed(reason string, err error) *MalformedEstimateError {
	return &MalformedEstimateError{Reason: reason, Err: err}
}

// rawEstimate mirrors the JSON requested from the model. Pointers tell
// missing fields apart from zero values.
type rawEstimate struct {
	DishName        *string  `json:"dishName"`
	Calories        *float64 `json:"calories"`
	Protein         *float64 `json:"protein"`
	Carbs           *float64 `json:"carbs"`
	Fat             *float64 `json:"fat"`
	Fiber           *float64 `json:"fiber"`
	Ingredients     []string `json:"ingredients"`
	MainIngredients []string `json:"mainIngredients"`
	EstimatedWeight *float64 `json:"estimatedWeight"`
	Confidence      *float64 `json:"confidence"`
	Barcode         *string  `json:"barcode"`
	ProductBrand    *string  `json:"productBrand"`
}

// ParseVisualEstimate extracts and validates the first JSON object in the
// model output. Any failure is returned as a *MalformedEstimateError.
func ParseVisualEstimate(text string) (nutrition.VisualEstimate, error) {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nutrition.VisualEstimate{}, malformed("no JSON object found", err)
	}

	var raw rawEstimate
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nutrition.VisualEstimate{}, malformed("invalid JSON", err)
	}

	if raw.DishName == nil || strings.TrimSpace(*raw.DishName) == "" {
		return nutrition.VisualEstimate{}, malformed("missing dishName", nil)
	}

	macros := []struct {
		name  string
		value *float64
	}{
		{"calories", raw.Calories},
		{"protein", raw.Protein},
		{"carbs", raw.Carbs},
		{"fat", raw.Fat},
		{"fiber", raw.Fiber},
	}
	for _, m := range macros {
		if m.value == nil {
			return nutrition.VisualEstimate{}, malformed("missing "+m.name, nil)
		}
		if *m.value < 0 {
			return nutrition.VisualEstimate{}, malformed(m.name+" is negative", nil)
		}
	}

	if raw.EstimatedWeight == nil {
		return nutrition.VisualEstimate{}, malformed("missing estimatedWeight", nil)
	}
	if *raw.EstimatedWeight <= 0 {
		return nutrition.VisualEstimate{}, malformed("estimatedWeight must be positive", nil)
	}

	if raw.Confidence == nil {
		return nutrition.VisualEstimate{}, malformed("missing confidence", nil)
	}
	confidence := math.Round(*raw.Confidence)
	if confidence < 0 || confidence > 100 {
		return nutrition.VisualEstimate{}, malformed(fmt.Sprintf("confidence %v out of range", *raw.Confidence), nil)
	}

	ingredients := cleanList(raw.Ingredients)
	mainIngredients := cleanList(raw.MainIngredients)
	// Main ingredients are a subset of ingredients.
	ingredients = appendMissing(ingredients, mainIngredients)

	est := nutrition.VisualEstimate{
		DishName:        strings.TrimSpace(*raw.DishName),
		Ingredients:     ingredients,
		MainIngredients: mainIngredients,
		Macros: nutrition.Macros{
			Calories: *raw.Calories,
			Protein:  *raw.Protein,
			Carbs:    *raw.Carbs,
			Fat:      *raw.Fat,
			Fiber:    *raw.Fiber,
		},
		EstimatedWeightGrams: *raw.EstimatedWeight,
		Confidence:           int(confidence),
	}
	if raw.Barcode != nil {
		est.Barcode = strings.TrimSpace(*raw.Barcode)
	}
	if raw.ProductBrand != nil {
		est.ProductBrand = strings.TrimSpace(*raw.ProductBrand)
	}
	return est, nil
}

// extractJSONObject returns the first balanced {...} object in text, skipping
// braces inside string literals.
func extractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no '{' in response: %q", truncate(text, 80))
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated JSON object in response")
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func appendMissing(list, extra []string) []string {
	present := make(map[string]struct{}, len(list))
	for _, s := range list {
		present[s] = struct{}{}
	}
	for _, s := range extra {
		if _, ok := present[s]; !ok {
			present[s] = struct{}{}
			list = append(list, s)
		}
	}
	return list
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
