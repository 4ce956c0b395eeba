// Package bot is the Telegram surface of the application. It translates
// chat commands and inline-keyboard callbacks into orchestrator calls and
// renders the results; no scheduling logic lives here.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/example/conceptbot/internal/config"
	"github.com/example/conceptbot/internal/excel"
	"github.com/example/conceptbot/internal/review"
	"github.com/example/conceptbot/pkg/models"
)

// UserStore is the storage capability the bot needs for users.
type UserStore interface {
	EnsureUser(ctx context.Context, u *models.User) (*models.User, error)
}

// MenuButton represents a button in a keyboard row
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates an inline keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// pendingQuestion tracks the concept currently shown to a chat, so the
// answer callback can compute the response time.
type pendingQuestion struct {
	ConceptID int64
	AskedAt   time.Time
}

// Bot represents the Telegram bot application
type Bot struct {
	api   *tgbotapi.BotAPI
	orch  *review.Orchestrator
	users UserStore
	store excel.ConceptWriter
	cfg   *config.Config
	log   *zap.SugaredLogger
	now   func() time.Time

	mu             sync.Mutex
	pending        map[int64]pendingQuestion // keyed by chat ID
	awaitingUpload map[int64]bool
}

// New creates a new bot instance
func New(cfg *config.Config, orch *review.Orchestrator, users UserStore, store excel.ConceptWriter, log *zap.SugaredLogger) (*Bot, error) {
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}

	return &Bot{
		api:            api,
		orch:           orch,
		users:          users,
		store:          store,
		cfg:            cfg,
		log:            log,
		now:            time.Now,
		pending:        make(map[int64]pendingQuestion),
		awaitingUpload: make(map[int64]bool),
	}, nil
}

// Start begins polling for updates and blocks until the context is done.
func (b *Bot) Start(ctx context.Context) error {
	b.log.Infow("bot authorized", "account", b.api.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// Stop stops receiving updates.
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
	b.log.Infow("bot stopped")
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.Errorw("handle message", "chat_id", update.Message.Chat.ID, "error", err)
			b.sendText(update.Message.Chat.ID, "❌ Something went wrong. Please try again later.")
		}
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.log.Errorw("handle callback", "data", update.CallbackQuery.Data, "error", err)
			if update.CallbackQuery.Message != nil {
				b.sendText(update.CallbackQuery.Message.Chat.ID, "❌ Something went wrong. Please try again later.")
			}
		}
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Errorw("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) send(msg tgbotapi.Chattable) error {
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
