package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/telegram-nutri-bot/internal/nutrition"
	"github.com/raine/telegram-nutri-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testAdminID = int64(1000)

type botApiMock struct {
	mock.Mock
}

func (m *botApiMock) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *botApiMock) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func (m *botApiMock) GetFileDirectURL(fileID string) (string, error) {
	args := m.Called(fileID)
	return args.Get(0).(string), args.Error(1)
}

// mockEstimator implements llm.Estimator for testing
type mockEstimator struct {
	mock.Mock
}

func (m *mockEstimator) EstimateNutrition(ctx context.Context, imageData []byte, mimeType string) (string, error) {
	args := m.Called(ctx, imageData, mimeType)
	return args.String(0), args.Error(1)
}

// stubFoods implements nutrition.FoodDatabase with fixed answers
type stubFoods struct {
	barcodes map[string]nutrition.NutritionRecord
}

func (s *stubFoods) LookupByBarcode(ctx context.Context, barcode string) *nutrition.NutritionRecord {
	if rec, ok := s.barcodes[barcode]; ok {
		return &rec
	}
	return nil
}

func (s *stubFoods) SearchByName(ctx context.Context, query, brand string) *nutrition.NutritionRecord {
	return nil
}

type testEnv struct {
	tg        *botApiMock
	estimator *mockEstimator
	foods     *stubFoods
	store     *storage.SQLiteStore
	bot       *Bot
}

func setup(t *testing.T) *testEnv {
	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	tg := new(botApiMock)
	estimator := new(mockEstimator)
	foods := &stubFoods{barcodes: map[string]nutrition.NutritionRecord{}}
	resolver := nutrition.NewResolver(foods, nutrition.NewCache(store), nutrition.DefaultDishes())

	bot := NewBot(tg, store, estimator, resolver, testAdminID)
	bot.now = func() time.Time {
		return time.Date(2026, 3, 14, 12, 30, 0, 0, time.Local)
	}

	t.Cleanup(func() {
		bot.Shutdown()
		store.Close()
	})

	// Typing indicators
	tg.On("Request", mock.AnythingOfType("tgbotapi.ChatActionConfig")).
		Return(&tgbotapi.APIResponse{Ok: true}, nil).Maybe()

	return &testEnv{tg: tg, estimator: estimator, foods: foods, store: store, bot: bot}
}

func makeUpdateWithMessageText(userId int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userId},
			Text: text,
		},
	}
}

func makeUpdateWithPhoto(userId int64, caption string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			From:    &tgbotapi.User{ID: userId},
			Caption: caption,
			Photo: []tgbotapi.PhotoSize{
				{FileID: "small", Width: 90, Height: 90},
				{FileID: "large", Width: 1280, Height: 1280},
			},
		},
	}
}

func makeMessage(userId int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(userId, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}

func sentTextContaining(parts ...string) any {
	return mock.MatchedBy(func(msg tgbotapi.MessageConfig) bool {
		for _, p := range parts {
			if !strings.Contains(msg.Text, p) {
				return false
			}
		}
		return true
	})
}

// servePhoto makes the mock resolve file IDs to a test server serving a JPEG.
func servePhoto(t *testing.T, env *testEnv) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	}))
	t.Cleanup(ts.Close)

	env.tg.On("GetFileDirectURL", "large").Return(ts.URL+"/large.jpg", nil).Once()
}

func TestHandleUpdate_NotWhitelistedIsIgnored(t *testing.T) {
	env := setup(t)

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(42, "/start"))

	env.tg.AssertNotCalled(t, "Send", mock.Anything)
}

func TestHandleUpdate_Start(t *testing.T) {
	env := setup(t)

	env.tg.On("Send", makeMessage(testAdminID, formatReplyText(MsgStartPrompt))).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(testAdminID, "/start"))

	env.tg.AssertExpectations(t)
}

func TestHandleUpdate_WhitelistedUserToday(t *testing.T) {
	env := setup(t)
	require.NoError(t, env.store.AddAllowedUser(42, testAdminID))

	env.tg.On("Send", makeMessage(42, formatReplyText(MsgNoMealsToday))).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(42, "/today"))

	env.tg.AssertExpectations(t)
}

func TestHandlePhoto_LogsCuratedDish(t *testing.T) {
	env := setup(t)
	servePhoto(t, env)

	env.estimator.On("EstimateNutrition", mock.Anything, []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg").
		Return(`{"dishName":"Jollof Rice","calories":180,"protein":5,"carbs":30,"fat":6,"fiber":1,
			"ingredients":["riz","tomate"],"mainIngredients":["riz"],"estimatedWeight":350,"confidence":45}`, nil).Once()

	env.tg.On("Send", sentTextContaining(
		"*Jollof Rice* (lunch, ~350 g)",
		"Per 100 g: 200 kcal, protein 15.0 g, carbs 45.0 g, fat 10.0 g, fiber 2.0 g",
		"This portion: 700 kcal",
		"Main ingredients: riz, tomate, poulet",
		"Source: African Dishes Database (typical recipe)",
		"Today: 700 kcal",
	)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithPhoto(testAdminID, ""))

	env.tg.AssertExpectations(t)
	env.estimator.AssertExpectations(t)

	meals, err := env.store.GetMealsByDate(context.Background(), testAdminID, "2026-03-14")
	require.NoError(t, err)
	require.Len(t, meals, 1)
	assert.Equal(t, "Jollof Rice", meals[0].Name)
	assert.Equal(t, storage.MealTypeLunch, meals[0].MealType)
	require.Len(t, meals[0].Ingredients, 1)
	assert.Equal(t, 350.0, meals[0].Ingredients[0].Quantity)
	assert.InDelta(t, 700.0, meals[0].Ingredients[0].Calories, 0.001)
	assert.InDelta(t, 157.5, meals[0].Ingredients[0].Carbs, 0.001)

	summary, err := env.store.GetNutritionSummary(context.Background(), testAdminID, "2026-03-14")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.InDelta(t, 700.0, summary.TotalCalories, 0.001)
}

func TestHandlePhoto_CaptionBarcodeOverrides(t *testing.T) {
	env := setup(t)
	servePhoto(t, env)
	env.foods.barcodes["5000112637922"] = nutrition.NutritionRecord{
		Name:   "Coca-Cola",
		Macros: nutrition.Macros{Calories: 42, Carbs: 10.6},
		Source: "Open Food Facts (Barcode)",
	}

	env.estimator.On("EstimateNutrition", mock.Anything, mock.Anything, "image/jpeg").
		Return(`{"dishName":"Soda","calories":40,"protein":0,"carbs":10,"fat":0,"fiber":0,
			"ingredients":[],"mainIngredients":[],"estimatedWeight":330,"confidence":90,"barcode":""}`, nil).Once()

	env.tg.On("Send", sentTextContaining(
		"*Soda*",
		"Per 100 g: 42 kcal",
		"Source: Open Food Facts (Barcode)",
	)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithPhoto(testAdminID, " 5000112637922 "))

	env.tg.AssertExpectations(t)
}

func TestHandlePhoto_UnverifiedEstimate(t *testing.T) {
	env := setup(t)
	servePhoto(t, env)

	env.estimator.On("EstimateNutrition", mock.Anything, mock.Anything, "image/jpeg").
		Return(`{"dishName":"Mystery stew","calories":150,"protein":8,"carbs":12,"fat":7,"fiber":2,
			"ingredients":[],"mainIngredients":[],"estimatedWeight":200,"confidence":80}`, nil).Once()

	env.tg.On("Send", sentTextContaining(
		"Per 100 g: 150 kcal",
		"This portion: 300 kcal",
		MsgUnverifiedEstimate,
	)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithPhoto(testAdminID, ""))

	env.tg.AssertExpectations(t)
}

func TestHandlePhoto_MalformedEstimate(t *testing.T) {
	env := setup(t)
	servePhoto(t, env)

	env.estimator.On("EstimateNutrition", mock.Anything, mock.Anything, "image/jpeg").
		Return("I can't see any food in this picture.", nil).Once()
	env.tg.On("Send", makeMessage(testAdminID, formatReplyText(MsgEstimateUnreadable))).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithPhoto(testAdminID, ""))

	env.tg.AssertExpectations(t)
	meals, err := env.store.GetMealsByDate(context.Background(), testAdminID, "2026-03-14")
	require.NoError(t, err)
	assert.Empty(t, meals)
}

func TestHandlePhoto_EstimatorError(t *testing.T) {
	env := setup(t)
	servePhoto(t, env)

	env.estimator.On("EstimateNutrition", mock.Anything, mock.Anything, "image/jpeg").
		Return("", assert.AnError).Once()
	env.tg.On("Send", makeMessage(testAdminID, formatReplyText(MsgEstimateFailed))).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithPhoto(testAdminID, ""))

	env.tg.AssertExpectations(t)
}

func TestHandlePhoto_DownloadError(t *testing.T) {
	env := setup(t)

	env.tg.On("GetFileDirectURL", "large").Return("", assert.AnError).Once()
	env.tg.On("Send", makeMessage(testAdminID, formatReplyText(MsgPhotoDownloadFailed))).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithPhoto(testAdminID, ""))

	env.tg.AssertExpectations(t)
	env.estimator.AssertNotCalled(t, "EstimateNutrition", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleMeals_ListsToday(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	meal, err := env.store.CreateMeal(ctx, storage.Meal{
		UserID: testAdminID, Name: "Attiéké poisson", Date: "2026-03-14", MealType: storage.MealTypeLunch,
	})
	require.NoError(t, err)
	_, err = env.store.AddIngredient(ctx, meal.ID, storage.Ingredient{Name: "Attiéké poisson", Calories: 540})
	require.NoError(t, err)

	env.tg.On("Send", makeMessage(testAdminID, MsgMealsHeader+"• lunch: Attiéké poisson, 540 kcal")).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(ctx, makeUpdateWithMessageText(testAdminID, "/meals"))

	env.tg.AssertExpectations(t)
}

func TestHandleToday_Summary(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	meal, err := env.store.CreateMeal(ctx, storage.Meal{
		UserID: testAdminID, Name: "fufu", Date: "2026-03-14", MealType: storage.MealTypeDinner,
	})
	require.NoError(t, err)
	_, err = env.store.AddIngredient(ctx, meal.ID, storage.Ingredient{Name: "fufu", Calories: 400, Protein: 2, Carbs: 95, Fat: 0.5})
	require.NoError(t, err)
	_, err = env.store.UpdateNutritionLog(ctx, testAdminID, "2026-03-14")
	require.NoError(t, err)

	env.tg.On("Send", sentTextContaining("*Today*", "400 kcal", "carbs 95.0 g", "fat 0.5 g")).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(ctx, makeUpdateWithMessageText(testAdminID, "/today"))

	env.tg.AssertExpectations(t)
}

func TestAdminUsersCommands(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	env.tg.On("Send", makeMessage(testAdminID, formatReplyText(MsgAdminUserAdded, int64(42)))).
		Return(tgbotapi.Message{}, nil).Once()
	env.bot.handleUpdateSync(ctx, makeUpdateWithMessageText(testAdminID, "/admin users add 42"))

	allowed, err := env.store.IsUserAllowed(42)
	require.NoError(t, err)
	assert.True(t, allowed)

	env.tg.On("Send", sentTextContaining(MsgAdminAllowedUsers, "`42`")).
		Return(tgbotapi.Message{}, nil).Once()
	env.bot.handleUpdateSync(ctx, makeUpdateWithMessageText(testAdminID, "/admin users list"))

	env.tg.On("Send", makeMessage(testAdminID, formatReplyText(MsgAdminUserRemoved, int64(42)))).
		Return(tgbotapi.Message{}, nil).Once()
	env.bot.handleUpdateSync(ctx, makeUpdateWithMessageText(testAdminID, "/admin users remove 42"))

	allowed, err = env.store.IsUserAllowed(42)
	require.NoError(t, err)
	assert.False(t, allowed)

	env.tg.On("Send", makeMessage(testAdminID, formatReplyText(MsgAdminUserInvalidID))).
		Return(tgbotapi.Message{}, nil).Once()
	env.bot.handleUpdateSync(ctx, makeUpdateWithMessageText(testAdminID, "/admin users add bob"))

	env.tg.AssertExpectations(t)
}

func TestAdminCommand_NonAdminIgnored(t *testing.T) {
	env := setup(t)
	require.NoError(t, env.store.AddAllowedUser(42, testAdminID))

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(42, "/admin users add 43"))

	env.tg.AssertNotCalled(t, "Send", mock.Anything)
	allowed, err := env.store.IsUserAllowed(43)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRegisterCommands(t *testing.T) {
	tg := new(botApiMock)
	tg.On("Request", mock.MatchedBy(func(c tgbotapi.SetMyCommandsConfig) bool {
		return len(c.Commands) == len(botCommands) && c.Commands[0].Command == "start"
	})).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

	RegisterCommands(tg)

	tg.AssertExpectations(t)
}
