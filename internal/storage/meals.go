package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MealTypeBreakfast = "breakfast"
	MealTypeLunch     = "lunch"
	MealTypeDinner    = "dinner"
	MealTypeSnack     = "snack"
)

// Meal is a logged meal with its ingredients.
type Meal struct {
	ID          string
	UserID      int64
	Name        string
	Date        string // YYYY-MM-DD
	MealType    string
	CreatedAt   time.Time
	Ingredients []Ingredient
}

// Ingredient is one component of a meal. Macros are absolute amounts for
// the given quantity, not per 100 g.
type Ingredient struct {
	ID       int64
	MealID   string
	Name     string
	Quantity float64
	Unit     string
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
}

// NutritionLog holds the daily totals of a user.
type NutritionLog struct {
	UserID        int64
	Date          string
	TotalCalories float64
	TotalProtein  float64
	TotalCarbs    float64
	TotalFat      float64
	UpdatedAt     time.Time
}

// MealStore persists the meal log.
type MealStore interface {
	CreateMeal(ctx context.Context, meal Meal) (*Meal, error)
	AddIngredient(ctx context.Context, mealID string, ingredient Ingredient) (*Ingredient, error)
	GetMealsByDate(ctx context.Context, userID int64, date string) ([]Meal, error)
	GetNutritionSummary(ctx context.Context, userID int64, date string) (*NutritionLog, error)
	UpdateNutritionLog(ctx context.Context, userID int64, date string) (*NutritionLog, error)
}

// CreateMeal inserts a meal. ID and CreatedAt are assigned when empty.
func (s *SQLiteStore) CreateMeal(ctx context.Context, meal Meal) (*Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if meal.ID == "" {
		meal.ID = uuid.NewString()
	}
	if meal.CreatedAt.IsZero() {
		meal.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meals (id, user_id, name, date, meal_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, meal.ID, meal.UserID, meal.Name, meal.Date, meal.MealType, meal.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create meal: %w", err)
	}

	meal.Ingredients = nil
	return &meal, nil
}

// AddIngredient attaches an ingredient to an existing meal.
func (s *SQLiteStore) AddIngredient(ctx context.Context, mealID string, ingredient Ingredient) (*Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ingredients (meal_id, name, quantity, unit, calories, protein, carbs, fat)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, mealID, ingredient.Name, ingredient.Quantity, ingredient.Unit,
		ingredient.Calories, ingredient.Protein, ingredient.Carbs, ingredient.Fat)
	if err != nil {
		return nil, fmt.Errorf("failed to add ingredient: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get ingredient id: %w", err)
	}

	ingredient.ID = id
	ingredient.MealID = mealID
	return &ingredient, nil
}

// GetMealsByDate returns the user's meals for a date, oldest first, with
// their ingredients loaded.
func (s *SQLiteStore) GetMealsByDate(ctx context.Context, userID int64, date string) ([]Meal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meals, err := s.queryMeals(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if len(meals) == 0 {
		return meals, nil
	}

	index := make(map[string]int, len(meals))
	ids := make([]any, len(meals))
	for i, m := range meals {
		index[m.ID] = i
		ids[i] = m.ID
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meal_id, name, quantity, unit, calories, protein, carbs, fat
		FROM ingredients
		WHERE meal_id IN (`+placeholders+`)
		ORDER BY id
	`, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ing Ingredient
		var quantity sql.NullFloat64
		var unit sql.NullString
		if err := rows.Scan(&ing.ID, &ing.MealID, &ing.Name, &quantity, &unit,
			&ing.Calories, &ing.Protein, &ing.Carbs, &ing.Fat); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		ing.Quantity = quantity.Float64
		ing.Unit = unit.String
		i := index[ing.MealID]
		meals[i].Ingredients = append(meals[i].Ingredients, ing)
	}

	return meals, rows.Err()
}

// queryMeals loads the meal rows and closes the cursor before ingredients
// are queried, since the store holds a single connection.
func (s *SQLiteStore) queryMeals(ctx context.Context, userID int64, date string) ([]Meal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, date, meal_type, created_at
		FROM meals
		WHERE user_id = ? AND date = ?
		ORDER BY created_at, id
	`, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	meals := []Meal{}
	for rows.Next() {
		var m Meal
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Date, &m.MealType, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

// GetNutritionSummary returns the stored daily totals.
// Returns nil, nil if no log exists for the date.
func (s *SQLiteStore) GetNutritionSummary(ctx context.Context, userID int64, date string) (*NutritionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getNutritionLog(ctx, userID, date)
}

func (s *SQLiteStore) getNutritionLog(ctx context.Context, userID int64, date string) (*NutritionLog, error) {
	var l NutritionLog
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, date, total_calories, total_protein, total_carbs, total_fat, updated_at
		FROM nutrition_logs WHERE user_id = ? AND date = ?`,
		userID, date,
	).Scan(&l.UserID, &l.Date, &l.TotalCalories, &l.TotalProtein, &l.TotalCarbs, &l.TotalFat, &l.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query nutrition log: %w", err)
	}
	return &l, nil
}

// UpdateNutritionLog recomputes the daily totals from the ingredients of the
// user's meals on date and stores them.
func (s *SQLiteStore) UpdateNutritionLog(ctx context.Context, userID int64, date string) (*NutritionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := NutritionLog{UserID: userID, Date: date, UpdatedAt: time.Now()}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(i.calories), 0),
			COALESCE(SUM(i.protein), 0),
			COALESCE(SUM(i.carbs), 0),
			COALESCE(SUM(i.fat), 0)
		FROM ingredients i
		JOIN meals m ON m.id = i.meal_id
		WHERE m.user_id = ? AND m.date = ?`,
		userID, date,
	).Scan(&l.TotalCalories, &l.TotalProtein, &l.TotalCarbs, &l.TotalFat)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ingredients: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nutrition_logs (user_id, date, total_calories, total_protein, total_carbs, total_fat, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			total_calories = excluded.total_calories,
			total_protein = excluded.total_protein,
			total_carbs = excluded.total_carbs,
			total_fat = excluded.total_fat,
			updated_at = excluded.updated_at
	`, l.UserID, l.Date, l.TotalCalories, l.TotalProtein, l.TotalCarbs, l.TotalFat, l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update nutrition log: %w", err)
	}

	return &l, nil
}
