package nutrition

import (
	"sort"
	"strings"
)

// SourceAfricanDishes is the provenance tag of curated recipes.
const SourceAfricanDishes = "African Dishes Database"

// CuratedRecipe is a known dish with its typical ingredients and a per-100g
// macro estimate.
type CuratedRecipe struct {
	Key             string
	DishName        string
	Ingredients     []string
	MainIngredients []string
	Macros          Macros
	Source          string
}

// DishKnowledgeBase matches dish names against a fixed set of curated
// recipes.
//
// Entries are checked longest key first, ties broken alphabetically, so a
// short generic key never shadows a longer one that also matches.
type DishKnowledgeBase struct {
	recipes []CuratedRecipe
}

// NewDishKnowledgeBase builds a knowledge base from the given recipes. Keys
// are normalized; the caller's slice is not retained.
func NewDishKnowledgeBase(recipes []CuratedRecipe) *DishKnowledgeBase {
	ranked := make([]CuratedRecipe, len(recipes))
	copy(ranked, recipes)
	for i := range ranked {
		ranked[i].Key = NormalizeKey(ranked[i].Key)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if len(ranked[i].Key) != len(ranked[j].Key) {
			return len(ranked[i].Key) > len(ranked[j].Key)
		}
		return ranked[i].Key < ranked[j].Key
	})
	return &DishKnowledgeBase{recipes: ranked}
}

// Lookup returns the first recipe whose key is contained in the normalized
// dish name or contains it. An empty name never matches.
func (kb *DishKnowledgeBase) Lookup(dishName string) (*CuratedRecipe, bool) {
	query := NormalizeKey(dishName)
	if query == "" {
		return nil, false
	}
	for i := range kb.recipes {
		r := &kb.recipes[i]
		if strings.Contains(query, r.Key) || strings.Contains(r.Key, query) {
			return r, true
		}
	}
	return nil, false
}

// Keys returns the recipe keys in match order.
func (kb *DishKnowledgeBase) Keys() []string {
	keys := make([]string, len(kb.recipes))
	for i, r := range kb.recipes {
		keys[i] = r.Key
	}
	return keys
}

// DefaultDishes returns the built-in West African dish knowledge base.
func DefaultDishes() *DishKnowledgeBase {
	return NewDishKnowledgeBase(africanDishes)
}

var africanDishes = []CuratedRecipe{
	{
		Key:             "attieke",
		DishName:        "Attieké",
		Ingredients:     []string{"attieké (semoule de manioc)", "poisson", "tomate", "oignon", "piment"},
		MainIngredients: []string{"attieké", "poisson"},
		Macros:          Macros{Calories: 180, Protein: 25, Carbs: 35, Fat: 8, Fiber: 3},
		Source:          SourceAfricanDishes,
	},
	{
		Key:             "jollof rice",
		DishName:        "Jollof Rice",
		Ingredients:     []string{"riz", "tomate", "oignon", "poivron", "huile", "épices", "poulet ou poisson"},
		MainIngredients: []string{"riz", "tomate", "poulet"},
		Macros:          Macros{Calories: 200, Protein: 15, Carbs: 45, Fat: 10, Fiber: 2},
		Source:          SourceAfricanDishes,
	},
	{
		Key:             "fufu",
		DishName:        "Fufu",
		Ingredients:     []string{"igname pilée", "manioc", "eau", "sauce (gombo, arachide, ou feuilles)"},
		MainIngredients: []string{"igname", "manioc"},
		Macros:          Macros{Calories: 150, Protein: 2, Carbs: 38, Fat: 1, Fiber: 3},
		Source:          SourceAfricanDishes,
	},
	{
		Key:             "mafe",
		DishName:        "Mafé",
		Ingredients:     []string{"viande (boeuf/poulet)", "pâte d'arachide", "tomate", "oignon", "carotte", "chou", "patate douce"},
		MainIngredients: []string{"viande", "pâte d'arachide", "légumes"},
		Macros:          Macros{Calories: 250, Protein: 20, Carbs: 25, Fat: 18, Fiber: 4},
		Source:          SourceAfricanDishes,
	},
	{
		Key:             "thieboudienne",
		DishName:        "Thiéboudienne",
		Ingredients:     []string{"riz", "poisson", "tomate", "oignon", "carotte", "chou", "aubergine", "manioc", "patate douce"},
		MainIngredients: []string{"riz", "poisson", "légumes"},
		Macros:          Macros{Calories: 220, Protein: 22, Carbs: 40, Fat: 8, Fiber: 5},
		Source:          SourceAfricanDishes,
	},
	{
		Key:             "ndole",
		DishName:        "Ndolé",
		Ingredients:     []string{"feuilles de ndolé", "arachide", "viande ou poisson", "crevettes", "oignon", "ail", "huile"},
		MainIngredients: []string{"feuilles de ndolé", "arachide", "viande"},
		Macros:          Macros{Calories: 280, Protein: 25, Carbs: 15, Fat: 22, Fiber: 6},
		Source:          SourceAfricanDishes,
	},
	{
		Key:             "alloco",
		DishName:        "Alloco",
		Ingredients:     []string{"banane plantain", "huile de friture", "oignon", "piment", "tomate"},
		MainIngredients: []string{"banane plantain"},
		Macros:          Macros{Calories: 200, Protein: 2, Carbs: 35, Fat: 12, Fiber: 3},
		Source:          SourceAfricanDishes,
	},
	{
		Key:             "kedjenou",
		DishName:        "Kedjenou",
		Ingredients:     []string{"poulet", "oignon", "tomate", "aubergine", "piment", "gingembre", "ail"},
		MainIngredients: []string{"poulet", "légumes"},
		Macros:          Macros{Calories: 180, Protein: 28, Carbs: 12, Fat: 10, Fiber: 3},
		Source:          SourceAfricanDishes,
	},
	{
		Key:             "poulet dg",
		DishName:        "Poulet DG",
		Ingredients:     []string{"poulet", "banane plantain", "carotte", "haricots verts", "oignon", "poivron", "tomate"},
		MainIngredients: []string{"poulet", "banane plantain", "légumes"},
		Macros:          Macros{Calories: 220, Protein: 25, Carbs: 30, Fat: 12, Fiber: 4},
		Source:          SourceAfricanDishes,
	},
	{
		Key:             "garri",
		DishName:        "Garri",
		Ingredients:     []string{"semoule de manioc", "eau", "sucre ou lait (optionnel)", "arachides"},
		MainIngredients: []string{"semoule de manioc"},
		Macros:          Macros{Calories: 160, Protein: 2, Carbs: 40, Fat: 1, Fiber: 2},
		Source:          SourceAfricanDishes,
	},
}
