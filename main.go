package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/telegram-nutri-bot/config"
	"github.com/raine/telegram-nutri-bot/internal/bot"
	"github.com/raine/telegram-nutri-bot/internal/llm"
	"github.com/raine/telegram-nutri-bot/internal/maintenance"
	"github.com/raine/telegram-nutri-bot/internal/nutrition"
	"github.com/raine/telegram-nutri-bot/internal/openfoodfacts"
	"github.com/raine/telegram-nutri-bot/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const logFileName = "telegram-nutri-bot.log"

func fatal(format string, a ...any) {
	log.Fatal().Msg(fmt.Sprintf(format, a...))
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()

	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd (journald handles it, and ProtectSystem=strict
	// makes the working directory read-only).
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		// Local development: log to both stderr and file
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fatal("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		multiWriter := io.MultiWriter(consoleWriter, fileWriter)
		log.Logger = log.Output(multiWriter)

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("invalid config: %v", err)
	}

	tg, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		fatal("failed to initialize telegram bot: %v", err)
	}
	tg.Debug = false
	log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")

	// Register bot commands for Telegram's command menu
	bot.RegisterCommands(tg)

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		fatal("failed to initialize store: %v", err)
	}
	defer store.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("store initialized")

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cacheStore nutrition.CacheStore = store
	if cfg.RedisURL != "" {
		redisCache, err := storage.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			fatal("failed to initialize redis nutrition cache: %v", err)
		}
		defer redisCache.Close()
		cacheStore = redisCache
		log.Info().Msg("nutrition cache backed by redis")
	}
	nutritionCache := nutrition.NewCache(cacheStore)

	foods, err := openfoodfacts.NewClient(openfoodfacts.ClientOpts{
		BaseURL:   cfg.FoodAPIBaseURL,
		UserAgent: cfg.FoodAPIUserAgent,
		Timeout:   cfg.FoodAPITimeout,
	})
	if err != nil {
		fatal("failed to initialize open food facts client: %v", err)
	}
	resolver := nutrition.NewResolver(foods, nutritionCache, nutrition.DefaultDishes())

	gemini, err := llm.NewGeminiEstimator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		fatal("failed to initialize gemini estimator: %v", err)
	}
	log.Info().Str("model", cfg.GeminiModel).Msg("gemini estimator initialized")

	// Wrap with cache
	estimator := llm.NewCachedEstimator(gemini, store)

	b := bot.NewBot(tg, store, estimator, resolver, cfg.AdminID)

	g, ctx := errgroup.WithContext(ctx)

	// Run bot update loop
	g.Go(func() error {
		return runBot(ctx, tg, b)
	})

	maintenanceService := maintenance.NewService(store)
	g.Go(func() error {
		maintenanceService.Run(ctx)
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}

	log.Info().Msg("waiting for pending cache updates")
	nutritionCache.Wait()
}

func runBot(ctx context.Context, tg *tgbotapi.BotAPI, b *bot.Bot) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := tg.GetUpdatesChan(updateConfig)

	var wg sync.WaitGroup
	defer b.Shutdown()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping bot update loop")
			tg.StopReceivingUpdates()
			log.Info().Msg("waiting for active handlers to finish")
			wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("updates channel closed")
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}
