package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/hray3182/SonarBot/internal/models"
	"github.com/hray3182/SonarBot/internal/rrule"
	"github.com/hray3182/SonarBot/internal/timeparse"
)

const reminderTimeLayout = "02 Jan 2006 at 15:04"

const textReminderHelp = `🔔 **New Reminder**

Please tell me what to remind you about and when.

**Examples:**
- Remind me to call mom tomorrow at 5:00 PM
- Remind me to check email in 30 minutes
- Remind me to take medicine every day at 9:00 AM
- Remind me to pay bills every 15th of each month at 10:00`

const reminderFormatHint = `

Please try again with a clearer time format, like:
- Remind me to call mom tomorrow at 5:00 PM
- Remind me to check email in 30 minutes
- Remind me to take medicine every day at 9:00 AM`

const (
	textReminderDeleted  = "✅ Reminder deleted successfully."
	textReminderNotFound = "❌ Reminder not found or already deleted."
	textNoReminders      = "You don't have any active reminders."
)

func isReminderRequest(text string) bool {
	return timeparse.IsReminderRequest(text)
}

func (h *Handlers) handleReminderHelp(msg *tgbotapi.Message) {
	h.sendMessage(msg.Chat.ID, textReminderHelp)
}

// handleReminderRequest parses a "remind me ..." message and asks the user to
// confirm it. Recurring phrases are tried before one-shot times.
func (h *Handlers) handleReminderRequest(msg *tgbotapi.Message, text string) {
	now := h.now().In(h.loc)
	reminderText := timeparse.ExtractText(text)

	rec, recErr := timeparse.ParseRecurrence(text, now)
	if recErr == nil {
		h.pending.putReminder(msg.From.ID, pendingReminder{
			Text:      reminderText,
			At:        rec.First,
			Recurring: true,
			Rule:      rec.Cron,
		})
		h.sendMessageWithKeyboard(msg.Chat.ID, fmt.Sprintf(
			"🔔 **Recurring Reminder**\n\n**Text:** %s\n**Pattern:** %s\n**First occurrence:** %s\n\nIs this correct?",
			reminderText, rrule.HumanReadable(rec.Cron), rec.First.In(h.loc).Format(reminderTimeLayout),
		), reminderConfirmKeyboard())
		return
	}

	at, err := timeparse.ParseTime(text, now)
	if err == nil {
		h.pending.putReminder(msg.From.ID, pendingReminder{Text: reminderText, At: at})
		h.sendMessageWithKeyboard(msg.Chat.ID, fmt.Sprintf(
			"🔔 **New Reminder**\n\n**Text:** %s\n**Time:** %s\n\nIs this correct?",
			reminderText, at.In(h.loc).Format(reminderTimeLayout),
		), reminderConfirmKeyboard())
		return
	}

	h.debug("reminder parse failed: %v / %v", err, recErr)
	h.sendMessage(msg.Chat.ID, "❌ "+reminderErrorHint(err, recErr)+reminderFormatHint)
}

// reminderErrorHint picks the most specific hint: an invalid date beats a
// phrase that was not understood at all.
func reminderErrorHint(timeErr, recErr error) string {
	var te *timeparse.Error
	if errors.As(recErr, &te) && errors.Is(recErr, timeparse.ErrInvalidDate) {
		return te.Hint
	}
	if errors.As(timeErr, &te) {
		return te.Hint
	}
	return "I couldn't understand when to set the reminder."
}

func (h *Handlers) confirmReminder(ctx context.Context, chatID int64, messageID int, userID int64) {
	p, ok := h.pending.takeReminder(userID)
	if !ok {
		h.editMessageText(chatID, messageID, "❌ Error: Reminder data not found. Please try setting a new reminder.")
		return
	}

	reminder, err := h.svc.Reminders.Create(ctx, userID, p.Text, p.At, p.Recurring, p.Rule)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to create reminder")
		h.editMessageText(chatID, messageID, "❌ Failed to save the reminder. Please try again.")
		return
	}

	at := p.At.In(h.loc).Format(reminderTimeLayout)
	switch {
	case p.Recurring:
		h.editMessageText(chatID, messageID, fmt.Sprintf("✅ Recurring reminder set: **%s**\n\n📅 Pattern: %s\n⏰ First occurrence: %s",
			p.Text, rrule.HumanReadable(p.Rule), at))
	case !reminder.IsActive:
		h.editMessageText(chatID, messageID, fmt.Sprintf("⚠️ **%s** was scheduled for %s, which has already passed. The reminder was not set.", p.Text, at))
	default:
		h.editMessageText(chatID, messageID, fmt.Sprintf("✅ Reminder set: **%s**\n\n⏰ Scheduled for: %s", p.Text, at))
	}
}

func (h *Handlers) handleReminderList(ctx context.Context, msg *tgbotapi.Message) {
	reminders, err := h.svc.Reminders.ListActive(ctx, msg.From.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", msg.From.ID).Error("Failed to list reminders")
		h.sendMessage(msg.Chat.ID, msgGenericError)
		return
	}
	if len(reminders) == 0 {
		h.sendMessage(msg.Chat.ID, textNoReminders)
		return
	}
	h.sendMessageWithKeyboard(msg.Chat.ID, h.reminderListText(reminders), reminderListKeyboard(reminders))
}

// showReminderList replaces a message with the reminder list, prefixed by
// notice when one is given.
func (h *Handlers) showReminderList(ctx context.Context, chatID int64, messageID int, userID int64, notice string) {
	reminders, err := h.svc.Reminders.ListActive(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list reminders")
		h.editMessageText(chatID, messageID, msgGenericError)
		return
	}

	prefix := ""
	if notice != "" {
		prefix = notice + "\n\n"
	}
	if len(reminders) == 0 {
		h.editMessageWithKeyboard(chatID, messageID, prefix+textNoReminders,
			tgbotapi.NewInlineKeyboardMarkup(backToSettingsRow()))
		return
	}
	h.editMessageWithKeyboard(chatID, messageID, prefix+h.reminderListText(reminders), reminderListKeyboard(reminders))
}

func (h *Handlers) deleteReminderFromList(ctx context.Context, chatID int64, messageID int, userID int64, rawID string) {
	id, ok := parseID(rawID)
	if !ok {
		h.editMessageText(chatID, messageID, "❌ Invalid reminder ID format.")
		return
	}
	deleted, err := h.svc.Reminders.Delete(ctx, userID, id)
	if err != nil {
		logrus.WithError(err).WithField("reminder_id", id).Error("Failed to delete reminder")
		h.editMessageText(chatID, messageID, msgGenericError)
		return
	}
	if !deleted {
		h.showReminderList(ctx, chatID, messageID, userID, textReminderNotFound)
		return
	}
	h.showReminderList(ctx, chatID, messageID, userID, textReminderDeleted)
}

func (h *Handlers) handleDeleteReminderCommand(ctx context.Context, msg *tgbotapi.Message, rawID string) {
	id, ok := parseID(rawID)
	if !ok {
		h.sendMessage(msg.Chat.ID, "Invalid reminder ID format.")
		return
	}
	deleted, err := h.svc.Reminders.Delete(ctx, msg.From.ID, id)
	if err != nil {
		logrus.WithError(err).WithField("reminder_id", id).Error("Failed to delete reminder")
		h.sendMessage(msg.Chat.ID, msgGenericError)
		return
	}
	if !deleted {
		h.sendMessage(msg.Chat.ID, textReminderNotFound)
		return
	}
	h.sendMessage(msg.Chat.ID, textReminderDeleted)
}

func (h *Handlers) reminderListText(reminders []*models.Reminder) string {
	now := h.now()
	var b strings.Builder
	b.WriteString("🔔 **Your Active Reminders:**\n\n")
	for i, r := range reminders {
		fmt.Fprintf(&b, "%d. **%s**\n   📅 %s\n\n", i+1, r.Text, describeWhen(r, now, h.loc))
	}
	return strings.TrimRight(b.String(), "\n")
}

// describeWhen renders a reminder's schedule relative to now.
func describeWhen(r *models.Reminder, now time.Time, loc *time.Location) string {
	if r.IsRecurring {
		return "Recurring: " + rrule.HumanReadable(r.RecurrenceRule)
	}

	at := r.ScheduledAt.In(loc)
	delta := at.Sub(now)
	switch {
	case delta < 0:
		return "Overdue"
	case delta < 24*time.Hour:
		hours := int(delta / time.Hour)
		minutes := int(delta%time.Hour) / int(time.Minute)
		if hours > 0 {
			return fmt.Sprintf("In %dh %dm", hours, minutes)
		}
		return fmt.Sprintf("In %dm", minutes)
	case delta < 48*time.Hour:
		return "Tomorrow at " + at.Format("15:04")
	default:
		return at.Format("02 Jan at 15:04")
	}
}
