package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/raine/telegram-nutri-bot/internal/llm"
)

const (
	AppName     = "telegram-nutri-bot"
	EnvFileName = "config.env"

	DefaultDBPath = "nutri.db"
)

// Config holds the runtime settings read from the environment.
type Config struct {
	BotToken     string
	GeminiAPIKey string
	GeminiModel  string
	AdminID      int64
	DBPath       string

	FoodAPIBaseURL   string
	FoodAPIUserAgent string
	FoodAPITimeout   time.Duration

	// RedisURL moves the nutrition cache to Redis when set.
	RedisURL string
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory and from .env in the working directory. Errors are
// ignored since the files may not exist. Variables already set win.
func LoadEnvFile() {
	if configBase, err := os.UserConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
	}
	_ = godotenv.Load(".env")
}

// Load reads the configuration from the environment. All missing or invalid
// variables are reported in a single error.
func Load() (*Config, error) {
	cfg := &Config{
		BotToken:         os.Getenv("BOT_TOKEN"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", llm.DefaultGeminiModel),
		DBPath:           getEnv("NUTRI_DB_PATH", DefaultDBPath),
		FoodAPIBaseURL:   os.Getenv("FOOD_API_BASE_URL"),
		FoodAPIUserAgent: os.Getenv("FOOD_API_USER_AGENT"),
		RedisURL:         os.Getenv("REDIS_URL"),
	}

	var missing []string
	var errs []error

	if cfg.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if cfg.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}

	if v := os.Getenv("ADMIN_TELEGRAM_ID"); v == "" {
		missing = append(missing, "ADMIN_TELEGRAM_ID")
	} else if id, err := strconv.ParseInt(v, 10, 64); err != nil {
		errs = append(errs, fmt.Errorf("ADMIN_TELEGRAM_ID must be a valid integer: %w", err))
	} else {
		cfg.AdminID = id
	}

	if v := os.Getenv("FOOD_API_TIMEOUT"); v == "" {
		missing = append(missing, "FOOD_API_TIMEOUT")
	} else if d, err := time.ParseDuration(v); err != nil {
		errs = append(errs, fmt.Errorf("FOOD_API_TIMEOUT must be a duration such as 8s: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("FOOD_API_TIMEOUT must be positive, got %s", d))
	} else {
		cfg.FoodAPITimeout = d
	}

	if len(missing) > 0 {
		errs = append([]error{fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))}, errs...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
