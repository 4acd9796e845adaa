package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/raine/telegram-nutri-bot/internal/nutrition"
	"github.com/raine/telegram-nutri-bot/internal/openfoodfacts"
)

func main() {
	query := flag.String("q", "", "Food name to search for")
	brand := flag.String("brand", "", "Brand to bias the search towards")
	barcode := flag.String("barcode", "", "Look up an exact barcode instead of searching")
	baseURL := flag.String("base-url", "", "Food API base URL (defaults to Open Food Facts)")
	timeout := flag.Duration("timeout", 0, "Request timeout (required), e.g. 8s")
	rawJSON := flag.Bool("json", false, "Output raw JSON only")
	flag.Parse()

	if *query == "" && *barcode == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -timeout <duration> -q <food name> [-brand <brand>] | -barcode <code>\n", os.Args[0])
		os.Exit(1)
	}

	if *timeout <= 0 {
		fmt.Fprintln(os.Stderr, "-timeout is required, e.g. -timeout 8s")
		os.Exit(1)
	}

	client, err := openfoodfacts.NewClient(openfoodfacts.ClientOpts{
		BaseURL: *baseURL,
		Timeout: *timeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var rec *nutrition.NutritionRecord
	if *barcode != "" {
		rec = client.LookupByBarcode(ctx, *barcode)
	} else {
		rec = client.SearchByName(ctx, *query, *brand)
	}

	if rec == nil {
		fmt.Fprintln(os.Stderr, "No match")
		os.Exit(2)
	}

	if *rawJSON {
		jsonBytes, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(jsonBytes))
		return
	}

	fmt.Printf("Name:     %s\n", rec.Name)
	if rec.Product != "" {
		fmt.Printf("Product:  %s\n", rec.Product)
	}
	fmt.Printf("Source:   %s\n", rec.Source)
	fmt.Printf("Per 100g: %.0f kcal, protein %.1f g, carbs %.1f g, fat %.1f g, fiber %.1f g\n",
		rec.Calories, rec.Protein, rec.Carbs, rec.Fat, rec.Fiber)
}
