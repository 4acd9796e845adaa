package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/telegram-nutri-bot/internal/llm"
	"github.com/raine/telegram-nutri-bot/internal/nutrition"
	"github.com/raine/telegram-nutri-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

const dateLayout = "2006-01-02"

// Telegram re-encodes photos as JPEG.
const photoMimeType = "image/jpeg"

// MealHandler logs meals from photos and answers the daily summary commands.
type MealHandler struct {
	tg         BotAPI
	store      Store
	estimator  llm.Estimator
	resolver   NutritionResolver
	downloader *PhotoDownloader
	now        func() time.Time
}

func NewMealHandler(tg BotAPI, store Store, estimator llm.Estimator, resolver NutritionResolver, now func() time.Time) *MealHandler {
	return &MealHandler{
		tg:         tg,
		store:      store,
		estimator:  estimator,
		resolver:   resolver,
		downloader: NewPhotoDownloader(),
		now:        now,
	}
}

// HandlePhoto estimates the nutrition of a meal photo, resolves it against
// the food databases, logs the meal for today and replies with the result.
func (h *MealHandler) HandlePhoto(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	typingCtx, cancelTyping := context.WithCancel(ctx)
	defer cancelTyping()
	go session.startTypingLoop(typingCtx)

	// Last size is the largest
	photo := message.Photo[len(message.Photo)-1]
	data, err := h.downloader.DownloadFileID(ctx, h.tg.GetFileDirectURL, photo.FileID)
	if err != nil {
		log.Error().Err(err).Int64("userId", session.userId).Msg("failed to download photo")
		session.reply(MsgPhotoDownloadFailed)
		return
	}

	raw, err := h.estimator.EstimateNutrition(ctx, data, photoMimeType)
	if err != nil {
		log.Error().Err(err).Int64("userId", session.userId).Msg("vision estimate failed")
		session.reply(MsgEstimateFailed)
		return
	}

	est, err := llm.ParseVisualEstimate(raw)
	if err != nil {
		var malformed *llm.MalformedEstimateError
		if errors.As(err, &malformed) {
			log.Warn().Err(err).Str("reason", malformed.Reason).Int64("userId", session.userId).Msg("unusable vision estimate")
		}
		session.reply(MsgEstimateUnreadable)
		return
	}

	if barcode, ok := parseBarcodeCaption(message.Caption); ok {
		est.Barcode = barcode
	}

	log.Info().
		Str("dish", est.DishName).
		Int("confidence", est.Confidence).
		Str("barcode", est.Barcode).
		Float64("grams", est.EstimatedWeightGrams).
		Msg("parsed visual estimate")

	result := h.resolver.Resolve(ctx, est)

	log.Info().
		Str("dish", est.DishName).
		Bool("enriched", result.Enriched).
		Strs("sources", result.Sources).
		Msg("resolved nutrition")

	meal, ingredient, err := h.logMeal(ctx, session.userId, est, result)
	if err != nil {
		session.replyWithError(err)
		return
	}

	totals, err := h.store.UpdateNutritionLog(ctx, session.userId, meal.Date)
	if err != nil {
		session.replyWithError(err)
		return
	}

	session._reply(formatMealReply(meal, ingredient, result, totals))
}

// logMeal stores the meal with one ingredient row for the whole portion.
// Resolved macros are per 100 g and are scaled by the estimated weight.
func (h *MealHandler) logMeal(
	ctx context.Context,
	userID int64,
	est nutrition.VisualEstimate,
	result nutrition.EnrichedResult,
) (*storage.Meal, *storage.Ingredient, error) {
	now := h.now()
	meal, err := h.store.CreateMeal(ctx, storage.Meal{
		UserID:    userID,
		Name:      est.DishName,
		Date:      now.Format(dateLayout),
		MealType:  mealTypeFor(now.Hour()),
		CreatedAt: now,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to log meal: %w", err)
	}

	scale := est.EstimatedWeightGrams / 100
	ingredient, err := h.store.AddIngredient(ctx, meal.ID, storage.Ingredient{
		Name:     est.DishName,
		Quantity: est.EstimatedWeightGrams,
		Unit:     "g",
		Calories: result.Macros.Calories * scale,
		Protein:  result.Macros.Protein * scale,
		Carbs:    result.Macros.Carbs * scale,
		Fat:      result.Macros.Fat * scale,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to log meal ingredient: %w", err)
	}

	return meal, ingredient, nil
}

// HandleToday replies with today's nutrition totals.
func (h *MealHandler) HandleToday(ctx context.Context, session *UserSession) {
	summary, err := h.store.GetNutritionSummary(ctx, session.userId, h.now().Format(dateLayout))
	if err != nil {
		session.replyWithError(err)
		return
	}
	if summary == nil {
		session.reply(MsgNoMealsToday)
		return
	}
	session.reply(MsgTodaySummary, formatTotals(summary))
}

// HandleMeals replies with the list of today's meals.
func (h *MealHandler) HandleMeals(ctx context.Context, session *UserSession) {
	meals, err := h.store.GetMealsByDate(ctx, session.userId, h.now().Format(dateLayout))
	if err != nil {
		session.replyWithError(err)
		return
	}
	if len(meals) == 0 {
		session.reply(MsgNoMealsToday)
		return
	}

	var sb strings.Builder
	sb.WriteString(MsgMealsHeader)
	for _, m := range meals {
		var calories float64
		for _, ing := range m.Ingredients {
			calories += ing.Calories
		}
		fmt.Fprintf(&sb, "• %s: %s, %.0f kcal\n", m.MealType, escapeMarkdown(m.Name), calories)
	}
	session._reply(strings.TrimSpace(sb.String()))
}

func formatMealReply(meal *storage.Meal, portion *storage.Ingredient, result nutrition.EnrichedResult, totals *storage.NutritionLog) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s* (%s, ~%.0f g)\n", escapeMarkdown(meal.Name), meal.MealType, portion.Quantity)
	fmt.Fprintf(&sb, "Per 100 g: %s\n", formatMacros(result.Macros))
	fmt.Fprintf(&sb, "This portion: %.0f kcal\n", portion.Calories)
	if len(result.MainIngredients) > 0 {
		fmt.Fprintf(&sb, "Main ingredients: %s\n", escapeMarkdown(strings.Join(result.MainIngredients, ", ")))
	}
	if result.Enriched {
		fmt.Fprintf(&sb, "Source: %s\n", escapeMarkdown(strings.Join(result.Sources, ", ")))
	} else {
		sb.WriteString(MsgUnverifiedEstimate + "\n")
	}
	fmt.Fprintf(&sb, "\nToday: %.0f kcal", totals.TotalCalories)
	return sb.String()
}

func formatMacros(m nutrition.Macros) string {
	return fmt.Sprintf("%.0f kcal, protein %.1f g, carbs %.1f g, fat %.1f g, fiber %.1f g",
		m.Calories, m.Protein, m.Carbs, m.Fat, m.Fiber)
}

func formatTotals(l *storage.NutritionLog) string {
	return fmt.Sprintf("%.0f kcal\nprotein %.1f g\ncarbs %.1f g\nfat %.1f g",
		l.TotalCalories, l.TotalProtein, l.TotalCarbs, l.TotalFat)
}
