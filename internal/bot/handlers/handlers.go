package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/hray3182/SonarBot/internal/ai"
	"github.com/hray3182/SonarBot/internal/format"
	"github.com/hray3182/SonarBot/internal/history"
	"github.com/hray3182/SonarBot/internal/models"
)

// BotAPI is the part of *tgbotapi.BotAPI the handlers call directly.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendTyping(ctx context.Context, chatID int64) error
}

type UserStore interface {
	GetOrCreate(ctx context.Context, user *models.User) (*models.User, error)
	SetPreferredModel(ctx context.Context, userID int64, model string) error
	SetThinkingMode(ctx context.Context, userID int64, enabled bool) error
	SaveHistory(ctx context.Context, userID int64, log []history.Entry) error
	ClearHistory(ctx context.Context, userID int64) error
}

type ChatLog interface {
	Save(ctx context.Context, msg *models.ChatMessage) error
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}

type Reminders interface {
	Create(ctx context.Context, userID int64, text string, scheduledAt time.Time, recurring bool, rule string) (*models.Reminder, error)
	Delete(ctx context.Context, userID int64, reminderID int) (bool, error)
	ListActive(ctx context.Context, userID int64) ([]*models.Reminder, error)
}

type Subscriptions interface {
	Subscribe(ctx context.Context, userID int64, topic string, freq models.Frequency) (*models.TopicSubscription, error)
	Unsubscribe(ctx context.Context, userID int64, subscriptionID int) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.TopicSubscription, error)
}

type Asker interface {
	Ask(ctx context.Context, req ai.Request) (*ai.Response, error)
}

type Services struct {
	Users         UserStore
	ChatLog       ChatLog
	Reminders     Reminders
	Subscriptions Subscriptions
	AI            Asker
}

type Options struct {
	Catalog    *ai.Catalog
	History    *history.Manager
	Location   *time.Location
	HTTPClient *http.Client
	DevMode    bool
}

type Handlers struct {
	api        BotAPI
	messenger  Messenger
	svc        *Services
	catalog    *ai.Catalog
	history    *history.Manager
	loc        *time.Location
	httpClient *http.Client
	pending    *pendingStore
	now        func() time.Time
	devMode    bool
}

func New(api BotAPI, messenger Messenger, svc *Services, opts Options) *Handlers {
	if opts.Catalog == nil {
		opts.Catalog = ai.DefaultCatalog()
	}
	if opts.History == nil {
		opts.History = history.NewManager(history.ReplaceSameRole, 20, 10)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Handlers{
		api:        api,
		messenger:  messenger,
		svc:        svc,
		catalog:    opts.Catalog,
		history:    opts.History,
		loc:        opts.Location,
		httpClient: opts.HTTPClient,
		pending:    newPendingStore(pendingTTL),
		now:        time.Now,
		devMode:    opts.DevMode,
	}
}

// debug logs only in dev mode
func (h *Handlers) debug(msg string, args ...any) {
	if h.devMode {
		logrus.Debugf("[DEBUG] "+msg, args...)
	}
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	user, err := h.ensureUser(ctx, msg.From)
	if err != nil {
		logrus.WithError(err).WithField("user_id", msg.From.ID).Error("Failed to get/create user")
		h.sendMessage(msg.Chat.ID, msgGenericError)
		return
	}

	command := msg.Command()
	h.debug("command /%s from user %d", command, user.UserID)

	switch command {
	case "start":
		h.handleStart(ctx, msg, user)
	case "help":
		h.handleHelp(msg)
	case "settings":
		h.handleSettings(msg)
	case "model":
		h.handleModel(msg)
	case "thinking":
		h.handleThinking(ctx, msg, user)
	case "clear":
		h.handleClear(ctx, msg)
	case "reminder":
		h.handleReminderHelp(msg)
	case "list_reminders", "reminders":
		h.handleReminderList(ctx, msg)
	case "subscribe":
		h.handleSubscribe(msg)
	case "mysubs":
		h.handleSubscriptionList(ctx, msg)
	default:
		if id, ok := strings.CutPrefix(command, "delete_reminder_"); ok {
			h.handleDeleteReminderCommand(ctx, msg, id)
			return
		}
		h.sendMessage(msg.Chat.ID, "Unknown command. Use /help to see the available commands.")
	}
}

func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := h.ensureUser(ctx, msg.From)
	if err != nil {
		logrus.WithError(err).WithField("user_id", msg.From.ID).Error("Failed to get/create user")
		h.sendMessage(msg.Chat.ID, msgGenericError)
		return
	}

	if len(msg.Photo) > 0 {
		h.handlePhoto(ctx, msg, user)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	switch {
	case isReminderRequest(text):
		h.handleReminderRequest(msg, text)
	case isImageRequest(text):
		h.handleImageRequest(ctx, msg)
	default:
		h.handleQuestion(ctx, msg, user, text)
	}
}

func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	// Answer callback to remove loading state
	if _, err := h.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		logrus.WithError(err).Warn("Failed to answer callback")
	}
	if callback.Message == nil {
		return
	}

	user, err := h.ensureUser(ctx, callback.From)
	if err != nil {
		logrus.WithError(err).WithField("user_id", callback.From.ID).Error("Failed to get/create user")
		return
	}

	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	data := callback.Data
	h.debug("callback %q from user %d", data, user.UserID)

	switch {
	case data == "settings":
		h.editMessageWithKeyboard(chatID, messageID, textSettings, settingsKeyboard())
	case data == "change_model":
		h.editMessageWithKeyboard(chatID, messageID, textSelectModel, modelKeyboard(h.catalog))
	case strings.HasPrefix(data, "model_"):
		h.selectModel(ctx, chatID, messageID, user, strings.TrimPrefix(data, "model_"))
	case data == "thinking_settings":
		h.editMessageWithKeyboard(chatID, messageID, thinkingSettingsText(user.ThinkingMode), thinkingKeyboard(user.ThinkingMode))
	case data == "thinking_toggle":
		h.toggleThinking(ctx, chatID, messageID, user)
	case data == "clear_history":
		if err := h.clearHistory(ctx, user.UserID); err != nil {
			h.editMessageText(chatID, messageID, msgGenericError)
			return
		}
		h.editMessageText(chatID, messageID, textHistoryCleared)
	case data == "manage_reminders":
		h.showReminderList(ctx, chatID, messageID, user.UserID, "")
	case strings.HasPrefix(data, "delete_reminder_"):
		h.deleteReminderFromList(ctx, chatID, messageID, user.UserID, strings.TrimPrefix(data, "delete_reminder_"))
	case data == "reminder_confirm":
		h.confirmReminder(ctx, chatID, messageID, user.UserID)
	case data == "reminder_cancel":
		h.pending.takeReminder(user.UserID)
		h.editMessageText(chatID, messageID, "❌ Reminder cancelled.")
	case strings.HasPrefix(data, "freq_"):
		h.chooseFrequency(ctx, chatID, messageID, user.UserID, strings.TrimPrefix(data, "freq_"))
	case data == "manage_subscriptions":
		h.showSubscriptionList(ctx, chatID, messageID, user.UserID, "")
	case strings.HasPrefix(data, "unsub_"):
		h.unsubscribe(ctx, chatID, messageID, user.UserID, strings.TrimPrefix(data, "unsub_"))
	default:
		logrus.WithField("data", data).Warn("Unknown callback data")
	}
}

func (h *Handlers) ensureUser(ctx context.Context, from *tgbotapi.User) (*models.User, error) {
	return h.svc.Users.GetOrCreate(ctx, &models.User{
		UserID:    from.ID,
		UserName:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	})
}

// logChat records one message in the audit log. Failures are logged only.
func (h *Handlers) logChat(ctx context.Context, userID int64, role, content, model string) {
	err := h.svc.ChatLog.Save(ctx, &models.ChatMessage{UserID: userID, Role: role, Content: content, Model: model})
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to save chat message")
	}
}

func parseID(s string) (int, bool) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handlers) editMessageText(chatID int64, messageID int, text string) {
	parsed := format.ParseMarkdown(text)
	edit := tgbotapi.NewEditMessageText(chatID, messageID, parsed.Text)
	edit.Entities = parsed.Entities
	if _, err := h.api.Send(edit); err != nil {
		logrus.WithError(err).Warn("Failed to edit message")
	}
}

func (h *Handlers) editMessageWithKeyboard(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	parsed := format.ParseMarkdown(text)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, parsed.Text, keyboard)
	edit.Entities = parsed.Entities
	if _, err := h.api.Send(edit); err != nil {
		logrus.WithError(err).Warn("Failed to edit message with keyboard")
	}
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(chatID, parsed.Text)
	msg.Entities = parsed.Entities
	if _, err := h.api.Send(msg); err != nil {
		logrus.WithError(err).Warn("Failed to send message")
	}
}

func (h *Handlers) sendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(chatID, parsed.Text)
	msg.Entities = parsed.Entities
	msg.ReplyMarkup = keyboard
	if _, err := h.api.Send(msg); err != nil {
		logrus.WithError(err).Warn("Failed to send message with keyboard")
	}
}

func (h *Handlers) deleteMessage(chatID int64, messageID int) {
	if _, err := h.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		logrus.WithError(err).Warn("Failed to delete message")
	}
}

// SendApology tells the user something went wrong while handling their update.
func (h *Handlers) SendApology(chatID int64) {
	h.sendMessage(chatID, msgGenericError)
}
