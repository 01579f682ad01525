package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/hray3182/SonarBot/internal/history"
	"github.com/hray3182/SonarBot/internal/models"
)

const (
	msgGenericError = "❌ Sorry, something went wrong while processing your request. Please try again later."

	textSettings       = "⚙️ **Settings**\n\nWhat would you like to configure?"
	textSelectModel    = "🤖 **Select Model**\n\nChoose which Perplexity model to use:"
	textHistoryCleared = "🗑️ Your conversation history has been cleared."
)

const textHelp = `🤖 **Perplexity Telegram Bot Help**

**Commands:**
/start - Start the bot
/settings - Open settings menu
/model - Change the AI model
/thinking - Toggle thinking mode
/reminder - Set a new reminder
/list_reminders - List your active reminders
/subscribe TOPIC - Subscribe to news on a topic
/mysubs - List your news subscriptions
/clear - Clear conversation history
/help - Show this help message

**Features:**
🔍 **Web Search** - Ask any question to search the web
🧠 **Thinking Mode** - See the AI's reasoning process
🔔 **Reminders** - Set one-time or recurring reminders
📰 **News Updates** - Get regular updates on your topics of interest
🖼️ **Image Analysis** - Send an image with a question

**Setting Reminders:**
- One-time: 'Remind me to call mom tomorrow at 5:00 PM'
- Recurring: 'Remind me to check email every day at 9:00 AM'

**News Subscriptions:**
- Use /subscribe AI to follow a topic (replace AI with any topic)
- Choose hourly, daily, or weekly updates
- Get breaking news delivered automatically

**Models:**
- Sonar Pro - Fast search with grounding
- Sonar Reasoning - See step-by-step thinking
- Deep Research - Comprehensive answers for complex questions`

func welcomeText(name string) string {
	return fmt.Sprintf(`👋 Hi %s, welcome to the Perplexity Telegram Bot!

I'm powered by Perplexity's Sonar API and can help you with:
🔍 Searching the web in real-time
🧠 Answering questions with AI reasoning
🔔 Setting reminders for important tasks
📰 Following news on topics you care about
🖼️ Analyzing images you send

Just type your question or use one of these commands:
/settings - Change model, toggle thinking mode, manage reminders
/model - Change the AI model used for responses
/thinking - Toggle thinking mode on/off
/reminder - Set a new reminder
/subscribe - Follow a news topic
/clear - Clear your conversation history
/help - Show the full help`, name)
}

func thinkingSettingsText(enabled bool) string {
	if enabled {
		return "🧠 **Thinking Mode Settings**\n\nWhen using reasoning models, I will show my step-by-step thought process before giving you the final answer."
	}
	return "🧠 **Thinking Mode Settings**\n\nI will provide direct answers without showing my thought process."
}

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	h.sendMessage(msg.Chat.ID, welcomeText(user.DisplayName()))
	h.logChat(ctx, user.UserID, history.RoleSystem, "Conversation started", "")
}

func (h *Handlers) handleHelp(msg *tgbotapi.Message) {
	h.sendMessage(msg.Chat.ID, textHelp)
}

func (h *Handlers) handleSettings(msg *tgbotapi.Message) {
	h.sendMessageWithKeyboard(msg.Chat.ID, textSettings, settingsKeyboard())
}

func (h *Handlers) handleModel(msg *tgbotapi.Message) {
	h.sendMessageWithKeyboard(msg.Chat.ID, textSelectModel, modelKeyboard(h.catalog))
}

func (h *Handlers) handleThinking(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	enabled := !user.ThinkingMode
	if err := h.svc.Users.SetThinkingMode(ctx, user.UserID, enabled); err != nil {
		logrus.WithError(err).WithField("user_id", user.UserID).Error("Failed to toggle thinking mode")
		h.sendMessage(msg.Chat.ID, msgGenericError)
		return
	}

	if enabled {
		h.sendMessage(msg.Chat.ID, "🧠 Thinking mode is now enabled ✅\n\nI will now show my reasoning process when answering questions using reasoning models.")
		return
	}
	h.sendMessage(msg.Chat.ID, "🧠 Thinking mode is now disabled ❌\n\nI will now provide direct answers without showing my reasoning process.")
}

func (h *Handlers) handleClear(ctx context.Context, msg *tgbotapi.Message) {
	if err := h.clearHistory(ctx, msg.From.ID); err != nil {
		h.sendMessage(msg.Chat.ID, msgGenericError)
		return
	}
	h.sendMessage(msg.Chat.ID, textHistoryCleared)
}

// clearHistory empties the conversation log and the audit rows.
func (h *Handlers) clearHistory(ctx context.Context, userID int64) error {
	log := logrus.WithField("user_id", userID)
	if err := h.svc.Users.ClearHistory(ctx, userID); err != nil {
		log.WithError(err).Error("Failed to clear conversation history")
		return err
	}
	n, err := h.svc.ChatLog.DeleteByUser(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Failed to delete chat messages")
		return err
	}
	log.WithField("messages", n).Info("Conversation history cleared")
	return nil
}

func (h *Handlers) selectModel(ctx context.Context, chatID int64, messageID int, user *models.User, modelID string) {
	model, ok := h.catalog.Lookup(modelID)
	if !ok {
		h.editMessageWithKeyboard(chatID, messageID, "❌ Unknown model. Please choose one from the list.", modelKeyboard(h.catalog))
		return
	}
	if err := h.svc.Users.SetPreferredModel(ctx, user.UserID, model.ID); err != nil {
		logrus.WithError(err).WithField("user_id", user.UserID).Error("Failed to set preferred model")
		h.editMessageText(chatID, messageID, msgGenericError)
		return
	}
	logrus.WithFields(logrus.Fields{"user_id": user.UserID, "model": model.ID}).Info("Preferred model changed")
	h.editMessageText(chatID, messageID, fmt.Sprintf("✅ Model changed to **%s**\n\n%s", model.Name, model.Description))
}

func (h *Handlers) toggleThinking(ctx context.Context, chatID int64, messageID int, user *models.User) {
	enabled := !user.ThinkingMode
	if err := h.svc.Users.SetThinkingMode(ctx, user.UserID, enabled); err != nil {
		logrus.WithError(err).WithField("user_id", user.UserID).Error("Failed to toggle thinking mode")
		h.editMessageText(chatID, messageID, msgGenericError)
		return
	}
	h.editMessageWithKeyboard(chatID, messageID, thinkingSettingsText(enabled), thinkingKeyboard(enabled))
}
