package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/hray3182/SonarBot/internal/models"
)

const textSubscribeUsage = `📰 **Subscribe to News Updates**

Please use the format: /subscribe TOPIC

Examples:
- /subscribe AI
- /subscribe climate change
- /subscribe space exploration`

const textNoSubscriptions = "You don't have any active news subscriptions."

func frequencyPhrase(f models.Frequency) string {
	switch f {
	case models.FrequencyHourly:
		return "every hour"
	case models.FrequencyWeekly:
		return "once a week"
	default:
		return "once a day"
	}
}

func (h *Handlers) handleSubscribe(msg *tgbotapi.Message) {
	topic := strings.TrimSpace(msg.CommandArguments())
	if topic == "" {
		h.sendMessage(msg.Chat.ID, textSubscribeUsage)
		return
	}
	h.pending.putTopic(msg.From.ID, topic)
	h.sendMessageWithKeyboard(msg.Chat.ID,
		fmt.Sprintf("📊 How often would you like to receive updates about **%s**?", topic),
		frequencyKeyboard())
}

func (h *Handlers) chooseFrequency(ctx context.Context, chatID int64, messageID int, userID int64, choice string) {
	if choice == "cancel" {
		h.pending.takeTopic(userID)
		h.editMessageText(chatID, messageID, "❌ Subscription cancelled.")
		return
	}

	freq, err := models.ParseFrequency(choice)
	if err != nil {
		h.editMessageText(chatID, messageID, "❌ Unknown frequency. Please try subscribing again.")
		return
	}
	topic, ok := h.pending.takeTopic(userID)
	if !ok {
		h.editMessageText(chatID, messageID, "❌ Topic not found. Please try subscribing again.")
		return
	}

	if _, err := h.svc.Subscriptions.Subscribe(ctx, userID, topic, freq); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"user_id": userID, "topic": topic}).Error("Failed to subscribe")
		h.editMessageText(chatID, messageID, msgGenericError)
		return
	}
	h.editMessageText(chatID, messageID, fmt.Sprintf(
		"✅ You are now subscribed to news updates about **%s**.\n\nYou will receive updates %s.",
		topic, frequencyPhrase(freq)))
}

func (h *Handlers) handleSubscriptionList(ctx context.Context, msg *tgbotapi.Message) {
	subs, err := h.svc.Subscriptions.ListByUser(ctx, msg.From.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", msg.From.ID).Error("Failed to list subscriptions")
		h.sendMessage(msg.Chat.ID, msgGenericError)
		return
	}
	if len(subs) == 0 {
		h.sendMessage(msg.Chat.ID, textNoSubscriptions)
		return
	}
	h.sendMessageWithKeyboard(msg.Chat.ID, subscriptionListText(subs), subscriptionKeyboard(subs))
}

func (h *Handlers) showSubscriptionList(ctx context.Context, chatID int64, messageID int, userID int64, notice string) {
	subs, err := h.svc.Subscriptions.ListByUser(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list subscriptions")
		h.editMessageText(chatID, messageID, msgGenericError)
		return
	}

	prefix := ""
	if notice != "" {
		prefix = notice + "\n\n"
	}
	if len(subs) == 0 {
		h.editMessageWithKeyboard(chatID, messageID, prefix+textNoSubscriptions,
			tgbotapi.NewInlineKeyboardMarkup(backToSettingsRow()))
		return
	}
	h.editMessageWithKeyboard(chatID, messageID, prefix+subscriptionListText(subs), subscriptionKeyboard(subs))
}

func (h *Handlers) unsubscribe(ctx context.Context, chatID int64, messageID int, userID int64, rawID string) {
	id, ok := parseID(rawID)
	if !ok {
		h.editMessageText(chatID, messageID, "❌ Invalid subscription ID format.")
		return
	}
	removed, err := h.svc.Subscriptions.Unsubscribe(ctx, userID, id)
	if err != nil {
		logrus.WithError(err).WithField("subscription_id", id).Error("Failed to unsubscribe")
		h.editMessageText(chatID, messageID, msgGenericError)
		return
	}
	if !removed {
		h.showSubscriptionList(ctx, chatID, messageID, userID, "❌ Subscription not found or already deleted.")
		return
	}
	h.showSubscriptionList(ctx, chatID, messageID, userID, "✅ You have unsubscribed from this topic.")
}

func subscriptionListText(subs []*models.TopicSubscription) string {
	var b strings.Builder
	b.WriteString("📰 **Your News Subscriptions:**\n\n")
	for i, s := range subs {
		fmt.Fprintf(&b, "%d. **%s**\n   📊 Frequency: %s\n\n", i+1, s.Topic, s.Frequency.Label())
	}
	b.WriteString("Click on a subscription to unsubscribe.")
	return b.String()
}
