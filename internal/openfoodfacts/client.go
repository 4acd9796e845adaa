package openfoodfacts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/telegram-nutri-bot/internal/nutrition"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL   = "https://world.openfoodfacts.org/api/v2"
	DefaultUserAgent = "telegram-nutri-bot/1.0"

	SourceBarcode = "Open Food Facts (Barcode)"
	SourceSearch  = "Open Food Facts"
)

// Fallback values for nutrients missing from a search result. An unknown
// food is assumed to have a moderate generic profile rather than none.
var searchFallback = nutrition.Macros{
	Calories: 200,
	Protein:  15,
	Carbs:    30,
	Fat:      10,
	Fiber:    3,
}

type ClientOpts struct {
	BaseURL   string
	UserAgent string
	// Timeout bounds every request. Required.
	Timeout time.Duration
}

// Client looks up products in the Open Food Facts database.
type Client struct {
	httpClient *resty.Client
}

var _ nutrition.FoodDatabase = (*Client)(nil)

func NewClient(opts ClientOpts) (*Client, error) {
	if opts.Timeout <= 0 {
		return nil, errors.New("open food facts client requires a positive timeout")
	}
	baseURL := DefaultBaseURL
	if opts.BaseURL != "" {
		baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	userAgent := DefaultUserAgent
	if opts.UserAgent != "" {
		userAgent = opts.UserAgent
	}

	httpClient := resty.New().
		SetDebug(false).
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetHeaders(map[string]string{
			"Accept":     "application/json",
			"User-Agent": userAgent,
		})

	return &Client{httpClient: httpClient}, nil
}

type Product struct {
	ProductName string     `json:"product_name"`
	Nutriments  Nutriments `json:"nutriments"`
}

type Nutriments struct {
	EnergyKcal    NutrientValue `json:"energy-kcal_100g"`
	Proteins      NutrientValue `json:"proteins_100g"`
	Carbohydrates NutrientValue `json:"carbohydrates_100g"`
	Fat           NutrientValue `json:"fat_100g"`
	Fiber         NutrientValue `json:"fiber_100g"`
}

// NutrientValue is a per-100g amount. The API sends numbers, numeric
// strings or nothing at all; Valid reports whether a usable number was
// present. NaN, infinities and negative amounts count as missing.
type NutrientValue struct {
	Value float64
	Valid bool
}

func (n *NutrientValue) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil
	}
	n.Value, n.Valid = v, true
	return nil
}

func (n NutrientValue) Or(fallback float64) float64 {
	if n.Valid {
		return n.Value
	}
	return fallback
}

type productResponse struct {
	Status  int      `json:"status"`
	Product *Product `json:"product"`
}

type searchResponse struct {
	Count    int       `json:"count"`
	Products []Product `json:"products"`
}

func (c *Client) req(ctx context.Context, result any) *resty.Request {
	return c.httpClient.
		NewRequest().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(result)
}

// LookupByBarcode fetches a product by its exact barcode. It returns nil when
// the product is unknown or the request fails.
func (c *Client) LookupByBarcode(ctx context.Context, barcode string) *nutrition.NutritionRecord {
	result := &productResponse{}
	_, err := handleError(c.req(ctx, result).
		SetPathParams(map[string]string{
			"barcode": barcode,
		}).
		Get("/product/{barcode}.json"))
	if err != nil {
		log.Warn().Err(err).Str("barcode", barcode).Msg("open food facts barcode lookup failed")
		return nil
	}
	if result.Status != 1 || result.Product == nil {
		return nil
	}

	p := result.Product
	name := p.ProductName
	if name == "" {
		name = barcode
	}
	return &nutrition.NutritionRecord{
		Name:    name,
		Product: p.ProductName,
		Macros:  p.Nutriments.macros(nutrition.Macros{}),
		Source:  SourceBarcode,
	}
}

// SearchByName returns the top search result for query, biased towards
// brand when it is set. The record is named after query so that later
// lookups of the same name hit the cache.
func (c *Client) SearchByName(ctx context.Context, query, brand string) *nutrition.NutritionRecord {
	terms := query
	if brand != "" {
		terms = brand + " " + query
	}

	result := &searchResponse{}
	_, err := handleError(c.req(ctx, result).
		SetQueryParams(map[string]string{
			"search_terms":  terms,
			"search_simple": "1",
			"action":        "process",
			"json":          "1",
			"page_size":     "1",
			"fields":        "product_name,nutriments",
		}).
		Get("/search"))
	if err != nil {
		log.Warn().Err(err).Str("query", terms).Msg("open food facts search failed")
		return nil
	}
	if len(result.Products) == 0 {
		return nil
	}

	p := result.Products[0]
	return &nutrition.NutritionRecord{
		Name:    query,
		Product: p.ProductName,
		Macros:  p.Nutriments.macros(searchFallback),
		Source:  SourceSearch,
	}
}

func (n Nutriments) macros(fallback nutrition.Macros) nutrition.Macros {
	return nutrition.Macros{
		Calories: n.EnergyKcal.Or(fallback.Calories),
		Protein:  n.Proteins.Or(fallback.Protein),
		Carbs:    n.Carbohydrates.Or(fallback.Carbs),
		Fat:      n.Fat.Or(fallback.Fat),
		Fiber:    n.Fiber.Or(fallback.Fiber),
	}
}

// handleError turns failing responses (>399 status code) into errors.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		return res, fmt.Errorf("request failed: %s %s (status: %d)", res.Request.Method, res.Request.URL, res.StatusCode())
	}
	return res, nil
}
