package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raine/telegram-nutri-bot/config"
	"github.com/raine/telegram-nutri-bot/internal/llm"
	"github.com/raine/telegram-nutri-bot/internal/nutrition"
	"github.com/raine/telegram-nutri-bot/internal/openfoodfacts"
	"github.com/raine/telegram-nutri-bot/internal/storage"
)

func main() {
	model := flag.String("model", llm.DefaultGeminiModel, "Gemini model")
	barcode := flag.String("barcode", "", "Barcode overriding the one read from the photo")
	dbPath := flag.String("db", ":memory:", "SQLite database used as nutrition cache")
	timeout := flag.Duration("timeout", 0, "Food API request timeout (required), e.g. 8s")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <image-path>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required\n")
		os.Exit(1)
	}

	if *timeout <= 0 {
		fmt.Fprintln(os.Stderr, "-timeout is required, e.g. -timeout 8s")
		os.Exit(1)
	}

	config.LoadEnvFile()
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "GEMINI_API_KEY is not set")
		os.Exit(1)
	}

	imagePath := flag.Arg(0)
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	estimator, err := llm.NewGeminiEstimator(ctx, apiKey, *model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating Gemini estimator: %v\n", err)
		os.Exit(1)
	}

	raw, err := estimator.EstimateNutrition(ctx, imageData, getMimeType(imagePath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error estimating nutrition: %v\n", err)
		os.Exit(1)
	}

	est, err := llm.ParseVisualEstimate(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\nRaw response:\n%s\n", err, raw)
		os.Exit(1)
	}
	if *barcode != "" {
		est.Barcode = *barcode
	}
	printEstimate(est)

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	foods, err := openfoodfacts.NewClient(openfoodfacts.ClientOpts{Timeout: *timeout})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cache := nutrition.NewCache(store)
	result := nutrition.NewResolver(foods, cache, nutrition.DefaultDishes()).Resolve(ctx, est)
	cache.Wait()

	fmt.Println("\n" + strings.Repeat("-", 50) + "\n")
	printResult(result)
}

func printEstimate(est nutrition.VisualEstimate) {
	fmt.Println("=== ESTIMATE ===")
	fmt.Printf("Dish:        %s\n", est.DishName)
	fmt.Printf("Confidence:  %d\n", est.Confidence)
	fmt.Printf("Weight:      %.0f g\n", est.EstimatedWeightGrams)
	fmt.Printf("Ingredients: %s\n", strings.Join(est.Ingredients, ", "))
	fmt.Printf("Main:        %s\n", strings.Join(est.MainIngredients, ", "))
	if est.Barcode != "" {
		fmt.Printf("Barcode:     %s\n", est.Barcode)
	}
	if est.ProductBrand != "" {
		fmt.Printf("Brand:       %s\n", est.ProductBrand)
	}
	printMacros(est.Macros)
}

func printResult(result nutrition.EnrichedResult) {
	fmt.Println("=== RESOLVED ===")
	fmt.Printf("Enriched:    %t\n", result.Enriched)
	fmt.Printf("Sources:     %s\n", strings.Join(result.Sources, ", "))
	fmt.Printf("Main:        %s\n", strings.Join(result.MainIngredients, ", "))
	printMacros(result.Macros)
}

func printMacros(m nutrition.Macros) {
	fmt.Printf("Per 100g:    %.0f kcal, protein %.1f g, carbs %.1f g, fat %.1f g, fiber %.1f g\n",
		m.Calories, m.Protein, m.Carbs, m.Fat, m.Fiber)
}

func getMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
