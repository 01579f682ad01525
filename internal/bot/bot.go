package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hray3182/SonarBot/internal/bot/handlers"
)

var commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start the bot"},
	{Command: "settings", Description: "Open settings menu"},
	{Command: "model", Description: "Change AI model"},
	{Command: "thinking", Description: "Toggle thinking mode"},
	{Command: "reminder", Description: "Set a new reminder"},
	{Command: "list_reminders", Description: "List active reminders"},
	{Command: "subscribe", Description: "Subscribe to news updates"},
	{Command: "mysubs", Description: "List news subscriptions"},
	{Command: "clear", Description: "Clear conversation history"},
	{Command: "help", Description: "Show help message"},
}

// UpdateHandler processes the three kinds of update the bot reacts to.
type UpdateHandler interface {
	HandleCommand(ctx context.Context, msg *tgbotapi.Message)
	HandleMessage(ctx context.Context, msg *tgbotapi.Message)
	HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery)
	SendApology(chatID int64)
}

var _ UpdateHandler = (*handlers.Handlers)(nil)

type Bot struct {
	api      *tgbotapi.BotAPI
	handlers UpdateHandler
	wg       sync.WaitGroup
}

func New(api *tgbotapi.BotAPI, h UpdateHandler) *Bot {
	return &Bot{api: api, handlers: h}
}

// RegisterCommands publishes the command menu shown by Telegram clients.
func (b *Bot) RegisterCommands() error {
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	return nil
}

// SetWebhook points Telegram at url. Telegram echoes secret back in the
// X-Telegram-Bot-Api-Secret-Token header of every delivery.
func (b *Bot) SetWebhook(url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if _, err := b.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	logrus.WithField("url", url).Info("Webhook set")
	return nil
}

func (b *Bot) DeleteWebhook() error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

// Start long-polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	logrus.WithField("account", b.api.Self.UserName).Info("Authorized on account")

	// getUpdates is refused while a webhook is registered
	if err := b.DeleteWebhook(); err != nil {
		logrus.WithError(err).Warn("Failed to clear webhook before polling")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			b.Dispatch(ctx, update)
		}
	}
}

// Dispatch handles update on its own goroutine.
func (b *Bot) Dispatch(ctx context.Context, update tgbotapi.Update) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handleUpdate(ctx, update)
	}()
}

// Wait blocks until every dispatched update has been handled.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	log := logrus.WithFields(logrus.Fields{
		"update_id":      update.UpdateID,
		"correlation_id": uuid.NewString(),
	})
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Panic while handling update")
			if chat := update.FromChat(); chat != nil {
				b.handlers.SendApology(chat.ID)
			}
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		log.WithField("user_id", update.CallbackQuery.From.ID).Debug("Handling callback query")
		b.handlers.HandleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		log = log.WithField("user_id", update.Message.From.ID)
		if update.Message.IsCommand() {
			log.WithField("command", update.Message.Command()).Debug("Handling command")
			b.handlers.HandleCommand(ctx, update.Message)
			return
		}
		log.Debug("Handling message")
		b.handlers.HandleMessage(ctx, update.Message)
	}
}
