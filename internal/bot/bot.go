package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/telegram-nutri-bot/internal/llm"
	"github.com/raine/telegram-nutri-bot/internal/nutrition"
	"github.com/raine/telegram-nutri-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Store is the persistence the bot needs: the whitelist and the meal log.
type Store interface {
	storage.MealStore

	IsUserAllowed(telegramID int64) (bool, error)
	AddAllowedUser(telegramID, addedBy int64) error
	RemoveAllowedUser(telegramID int64) error
	GetAllowedUsers() ([]storage.AllowedUser, error)
}

// NutritionResolver turns a visual estimate into resolved nutrition.
type NutritionResolver interface {
	Resolve(ctx context.Context, est nutrition.VisualEstimate) nutrition.EnrichedResult
}

// Bot is the main Telegram bot handler.
type Bot struct {
	tg      BotAPI
	state   BotState
	store   Store
	adminID int64

	meals *MealHandler
	now   func() time.Time
}

// NewBot creates a new Bot instance.
func NewBot(tg BotAPI, store Store, estimator llm.Estimator, resolver NutritionResolver, adminID int64) *Bot {
	bot := &Bot{
		tg:      tg,
		store:   store,
		adminID: adminID,
		now:     time.Now,
	}

	bot.state = bot.NewBotState()
	bot.meals = NewMealHandler(tg, store, estimator, resolver, bot.clock)

	return bot
}

func (b *Bot) clock() time.Time {
	return b.now()
}

// Shutdown stops all session workers.
func (b *Bot) Shutdown() {
	b.state.Shutdown()
}

// HandleUpdate is the main message router.
// It dispatches messages to the appropriate session worker for sequential processing.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync is like HandleUpdate but waits for message processing to complete.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userId := update.Message.From.ID

	// Check if user is allowed (admin always allowed)
	// MUST be before getUserSession to prevent memory exhaustion from random user IDs
	if userId != b.adminID {
		allowed, err := b.store.IsUserAllowed(userId)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userId).Msg("whitelist check failed")
			return // Fail closed
		}
		if !allowed {
			return // Silent drop
		}
	}

	session := b.state.getUserSession(userId)

	msgType := "text"
	if len(update.Message.Photo) > 0 {
		msgType = "photo"
	}
	log.Info().Str("type", msgType).Str("text", update.Message.Text).Str("caption", update.Message.Caption).Msg("got message")

	msg := SessionMessage{Type: msgType, Ctx: ctx, Message: update.Message}
	if sync {
		session.SendSync(msg)
	} else {
		session.Send(msg)
	}
}

// HandleSessionMessage implements MessageHandler. It runs on the session
// worker goroutine.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	switch msg.Type {
	case "photo":
		b.meals.HandlePhoto(ctx, session, msg.Message)
	case "text":
		b.handleTextMessage(ctx, session, msg.Message)
	}
}

func (b *Bot) handleTextMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	if strings.HasPrefix(message.Text, "/") {
		b.handleCommand(ctx, session, message)
		return
	}
	session.reply(MsgStartPrompt)
}

func (b *Bot) handleCommand(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	command, args := parseCommand(message.Text)
	switch command {
	case "/today":
		b.meals.HandleToday(ctx, session)
	case "/meals":
		b.meals.HandleMeals(ctx, session)
	case "/admin":
		b.handleAdminCommand(session, strings.Join(args, " "))
	default:
		session.reply(MsgStartPrompt)
	}
}

// handleAdminCommand handles /admin command with subcommands.
// Only the admin user can use this command.
func (b *Bot) handleAdminCommand(session *UserSession, args string) {
	// Whitelisted users reach this too
	if session.userId != b.adminID {
		return // Silent drop for non-admin users
	}

	parts := strings.Fields(args)
	if len(parts) == 0 {
		session.reply(MsgAdminUsage)
		return
	}

	switch parts[0] {
	case "users":
		if len(parts) < 2 {
			session.reply(MsgAdminUsage)
			return
		}
		b.handleAdminUsersCommand(session, parts[1], parts[2:])
	default:
		session.reply(MsgAdminUsage)
	}
}

func (b *Bot) handleAdminUsersCommand(session *UserSession, action string, args []string) {
	switch action {
	case "add":
		if len(args) < 1 {
			session.reply(MsgAdminUserAddUsage)
			return
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			session.reply(MsgAdminUserInvalidID)
			return
		}
		if err := b.store.AddAllowedUser(userID, session.userId); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminUserAdded, userID)

	case "remove":
		if len(args) < 1 {
			session.reply(MsgAdminUserRemoveUsage)
			return
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			session.reply(MsgAdminUserInvalidID)
			return
		}
		if err := b.store.RemoveAllowedUser(userID); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminUserRemoved, userID)

	case "list":
		users, err := b.store.GetAllowedUsers()
		if err != nil {
			session.replyWithError(err)
			return
		}
		if len(users) == 0 {
			session.reply(MsgAdminNoUsers)
			return
		}
		var sb strings.Builder
		sb.WriteString(MsgAdminAllowedUsers)
		for _, u := range users {
			sb.WriteString(fmt.Sprintf("• `%d` (added %s)\n", u.TelegramID, u.AddedAt.Format("2006-01-02")))
		}
		session.reply(sb.String())

	default:
		session.reply(MsgAdminUsage)
	}
}
