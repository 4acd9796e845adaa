package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/raine/telegram-nutri-bot/internal/nutrition"
	_ "modernc.org/sqlite"
)

// AllowedUser represents a user in the whitelist.
type AllowedUser struct {
	TelegramID int64
	AddedAt    time.Time
	AddedBy    int64
}

// Store defines the persistence used by the bot.
type Store interface {
	nutrition.CacheStore
	MealStore

	// Vision cache methods
	GetVisionCache(imageHash string) (string, error)
	SetVisionCache(imageHash string, response string) error
	PruneVisionCache(olderThan time.Duration) (int64, error)

	// Allowed users methods
	IsUserAllowed(telegramID int64) (bool, error)
	AddAllowedUser(telegramID, addedBy int64) error
	RemoveAllowedUser(telegramID int64) error
	GetAllowedUsers() ([]AllowedUser, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-based store.
// The dbPath is the path to the SQLite database file.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases
	// shared across goroutines.
	db.SetMaxOpenConns(1)

	// Set file permissions (only works on creation)
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		// Ignore error if file doesn't exist yet
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	tables := []struct {
		name  string
		query string
	}{
		{"nutrition_cache", `
		CREATE TABLE IF NOT EXISTS nutrition_cache (
			food_name_normalized TEXT PRIMARY KEY,
			food_name TEXT NOT NULL,
			product_name TEXT,
			calories REAL NOT NULL,
			protein REAL NOT NULL,
			carbs REAL NOT NULL,
			fat REAL NOT NULL,
			fiber REAL NOT NULL,
			data_source TEXT NOT NULL,
			verified INTEGER NOT NULL DEFAULT 0,
			times_used INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`},
		{"vision_cache", `
		CREATE TABLE IF NOT EXISTS vision_cache (
			image_hash TEXT PRIMARY KEY,
			response TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`},
		{"allowed_users", `
		CREATE TABLE IF NOT EXISTS allowed_users (
			telegram_id INTEGER PRIMARY KEY,
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			added_by INTEGER
		);`},
		{"meals", `
		CREATE TABLE IF NOT EXISTS meals (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			date TEXT NOT NULL,
			meal_type TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_meals_user_date ON meals(user_id, date);`},
		{"ingredients", `
		CREATE TABLE IF NOT EXISTS ingredients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			meal_id TEXT NOT NULL,
			name TEXT NOT NULL,
			quantity REAL,
			unit TEXT,
			calories REAL NOT NULL DEFAULT 0,
			protein REAL NOT NULL DEFAULT 0,
			carbs REAL NOT NULL DEFAULT 0,
			fat REAL NOT NULL DEFAULT 0,
			FOREIGN KEY (meal_id) REFERENCES meals(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_ingredients_meal_id ON ingredients(meal_id);`},
		{"nutrition_logs", `
		CREATE TABLE IF NOT EXISTS nutrition_logs (
			user_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			total_calories REAL NOT NULL,
			total_protein REAL NOT NULL,
			total_carbs REAL NOT NULL,
			total_fat REAL NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, date)
		);`},
	}

	for _, t := range tables {
		if _, err := s.db.Exec(t.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}

	// Enable foreign keys for cascade delete
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetNutrition retrieves a cached nutrition record by normalized name.
// Returns nil, nil if no cache entry exists.
func (s *SQLiteStore) GetNutrition(ctx context.Context, key string) (*nutrition.NutritionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec nutrition.NutritionRecord
	var product sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT food_name, product_name, calories, protein, carbs, fat, fiber, data_source
		FROM nutrition_cache WHERE food_name_normalized = ?`,
		key,
	).Scan(&rec.Name, &product, &rec.Calories, &rec.Protein, &rec.Carbs, &rec.Fat, &rec.Fiber, &rec.Source)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query nutrition cache: %w", err)
	}

	rec.Product = product.String
	return &rec, nil
}

// UpsertNutrition stores a nutrition record, replacing the values of an
// existing entry and bumping its usage count.
func (s *SQLiteStore) UpsertNutrition(ctx context.Context, key string, rec nutrition.NutritionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nutrition_cache (
			food_name_normalized, food_name, product_name,
			calories, protein, carbs, fat, fiber, data_source, times_used
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(food_name_normalized) DO UPDATE SET
			food_name = excluded.food_name,
			product_name = excluded.product_name,
			calories = excluded.calories,
			protein = excluded.protein,
			carbs = excluded.carbs,
			fat = excluded.fat,
			fiber = excluded.fiber,
			data_source = excluded.data_source,
			times_used = nutrition_cache.times_used + 1,
			updated_at = CURRENT_TIMESTAMP
	`, key, rec.Name, rec.Product, rec.Calories, rec.Protein, rec.Carbs, rec.Fat, rec.Fiber, rec.Source)

	if err != nil {
		return fmt.Errorf("failed to upsert nutrition cache: %w", err)
	}
	return nil
}

// IncrementNutritionUsage bumps the usage counter of a cache entry.
func (s *SQLiteStore) IncrementNutritionUsage(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE nutrition_cache SET times_used = times_used + 1 WHERE food_name_normalized = ?",
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to increment nutrition cache usage: %w", err)
	}
	return nil
}

// GetNutritionUsage returns the usage counter of a cache entry, or 0 if the
// entry doesn't exist.
func (s *SQLiteStore) GetNutritionUsage(ctx context.Context, key string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var timesUsed int
	err := s.db.QueryRowContext(ctx,
		"SELECT times_used FROM nutrition_cache WHERE food_name_normalized = ?",
		key,
	).Scan(&timesUsed)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query nutrition cache usage: %w", err)
	}
	return timesUsed, nil
}

// GetVisionCache retrieves a cached vision response by image hash.
// Returns "", nil if no cache entry exists.
func (s *SQLiteStore) GetVisionCache(imageHash string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var response string
	err := s.db.QueryRow(
		"SELECT response FROM vision_cache WHERE image_hash = ?",
		imageHash,
	).Scan(&response)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query vision cache: %w", err)
	}

	return response, nil
}

// SetVisionCache stores a vision response in the cache.
func (s *SQLiteStore) SetVisionCache(imageHash string, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO vision_cache (image_hash, response)
		VALUES (?, ?)
		ON CONFLICT(image_hash) DO UPDATE SET
			response = excluded.response,
			created_at = CURRENT_TIMESTAMP
	`, imageHash, response)

	if err != nil {
		return fmt.Errorf("failed to cache vision result: %w", err)
	}
	return nil
}

// PruneVisionCache removes vision responses cached longer than olderThan.
func (s *SQLiteStore) PruneVisionCache(olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	modifier := fmt.Sprintf("-%d seconds", int64(olderThan.Seconds()))
	result, err := s.db.Exec(`DELETE FROM vision_cache WHERE created_at < datetime('now', ?)`, modifier)
	if err != nil {
		return 0, fmt.Errorf("failed to prune vision cache: %w", err)
	}

	return result.RowsAffected()
}

// IsUserAllowed checks if a user is in the whitelist.
func (s *SQLiteStore) IsUserAllowed(telegramID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM allowed_users WHERE telegram_id = ?",
		telegramID,
	).Scan(&count)

	if err != nil {
		return false, fmt.Errorf("failed to check allowed user: %w", err)
	}

	return count > 0, nil
}

// AddAllowedUser adds a user to the whitelist.
func (s *SQLiteStore) AddAllowedUser(telegramID, addedBy int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO allowed_users (telegram_id, added_by)
		VALUES (?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			added_by = excluded.added_by,
			added_at = CURRENT_TIMESTAMP
	`, telegramID, addedBy)

	if err != nil {
		return fmt.Errorf("failed to add allowed user: %w", err)
	}
	return nil
}

// RemoveAllowedUser removes a user from the whitelist.
func (s *SQLiteStore) RemoveAllowedUser(telegramID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM allowed_users WHERE telegram_id = ?", telegramID)
	if err != nil {
		return fmt.Errorf("failed to remove allowed user: %w", err)
	}
	return nil
}

// GetAllowedUsers returns all users in the whitelist.
func (s *SQLiteStore) GetAllowedUsers() ([]AllowedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT telegram_id, added_at, added_by FROM allowed_users ORDER BY added_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query allowed users: %w", err)
	}
	defer rows.Close()

	var users []AllowedUser
	for rows.Next() {
		var user AllowedUser
		var addedBy sql.NullInt64
		if err := rows.Scan(&user.TelegramID, &user.AddedAt, &addedBy); err != nil {
			return nil, fmt.Errorf("failed to scan allowed user: %w", err)
		}
		user.AddedBy = addedBy.Int64
		users = append(users, user)
	}

	return users, rows.Err()
}
