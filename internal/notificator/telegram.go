package notificator

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/core-coin/liqnotify/internal/format"
	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/logger"
)

// StatusProvider answers the /status command.
type StatusProvider interface {
	Subscriptions() ([]models.Subscription, error)
	Watchers() []models.WatcherInfo
}

// TelegramNotificator mirrors liquidity broadcasts into one Telegram chat.
type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot
	chatID string

	status StatusProvider
}

func NewTelegramNotificator(logger *logger.Logger, token, chatID string) (*TelegramNotificator, error) {
	provider := &TelegramNotificator{
		logger: logger,
		chatID: chatID,
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(provider.handler),
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	provider.bot = b

	return provider, nil
}

// Start polls for updates until ctx is done.
func (t *TelegramNotificator) Start(ctx context.Context, status StatusProvider) {
	t.status = status
	go t.bot.Start(ctx)
}

func (t *TelegramNotificator) Name() string {
	return "telegram"
}

func (t *TelegramNotificator) Send(ctx context.Context, notification *models.Notification) error {
	message := format.ComposeMirror(notification.Symbol, notification.Token, len(notification.Subscribers))
	return t.sendMessage(ctx, t.chatID, message)
}

func (t *TelegramNotificator) sendMessage(ctx context.Context, chatID, message string) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   message,
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func (t *TelegramNotificator) handler(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	t.logger.Debug("Telegram update", "username", update.Message.From.Username, "text", update.Message.Text)

	if update.Message.Text != "/status" {
		return
	}
	chatID := fmt.Sprint(update.Message.Chat.ID)
	if err := t.sendMessage(ctx, chatID, statusText(t.status)); err != nil {
		t.logger.Error("Failed to answer /status", "chat", chatID, "error", err)
	}
}

func statusText(status StatusProvider) string {
	if status == nil {
		return "Starting up, try again in a moment."
	}
	subs, err := status.Subscriptions()
	if err != nil {
		return "Could not read subscriptions: " + err.Error()
	}
	users := 0
	for _, s := range subs {
		users += len(s.Users)
	}
	return fmt.Sprintf("Pending tokens: %d\nWaiting users: %d\nArmed watchers: %d",
		len(subs), users, len(status.Watchers()))
}
