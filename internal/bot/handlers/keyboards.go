package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hray3182/SonarBot/internal/ai"
	"github.com/hray3182/SonarBot/internal/models"
)

func backToSettingsRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Back to Settings ⬅️", "settings"),
	)
}

func settingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Change Model 🔄", "change_model")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Thinking Mode ⚙️", "thinking_settings")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Manage Reminders 🔔", "manage_reminders")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Manage Subscriptions 📰", "manage_subscriptions")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Clear Chat History 🗑️", "clear_history")),
	)
}

// modelKeyboard lists the catalog two models per row.
func modelKeyboard(catalog *ai.Catalog) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, m := range catalog.Models {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(m.Label(), "model_"+m.ID))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func thinkingKeyboard(enabled bool) tgbotapi.InlineKeyboardMarkup {
	mode := "OFF ❌"
	if enabled {
		mode = "ON ✅"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Thinking Mode: "+mode, "thinking_toggle")),
		backToSettingsRow(),
	)
}

func reminderConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Confirm ✅", "reminder_confirm"),
			tgbotapi.NewInlineKeyboardButtonData("Cancel ❌", "reminder_cancel"),
		),
	)
}

func reminderListKeyboard(reminders []*models.Reminder) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(reminders)+1)
	for i, r := range reminders {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Delete Reminder #%d", i+1), fmt.Sprintf("delete_reminder_%d", r.ReminderID)),
		))
	}
	rows = append(rows, backToSettingsRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func frequencyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Hourly ⏱", "freq_"+string(models.FrequencyHourly)),
			tgbotapi.NewInlineKeyboardButtonData("Daily 📅", "freq_"+string(models.FrequencyDaily)),
			tgbotapi.NewInlineKeyboardButtonData("Weekly 🗓", "freq_"+string(models.FrequencyWeekly)),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Cancel ❌", "freq_cancel")),
	)
}

func subscriptionKeyboard(subs []*models.TopicSubscription) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(subs)+1)
	for _, s := range subs {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ "+s.Topic, fmt.Sprintf("unsub_%d", s.SubscriptionID)),
		))
	}
	rows = append(rows, backToSettingsRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
