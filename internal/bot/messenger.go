package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/hray3182/SonarBot/internal/format"
)

// Sender is the part of *tgbotapi.BotAPI the messenger needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Messenger delivers outbound text to a chat, splitting anything longer than
// one Telegram message allows.
type Messenger struct {
	api    Sender
	maxLen int
}

func NewMessenger(api Sender, maxLen int) *Messenger {
	if maxLen <= 0 {
		maxLen = format.MaxMessageLength
	}
	return &Messenger{api: api, maxLen: maxLen}
}

// SendText sends plain text. A chunk Telegram rejects is retried once with
// everything but letters, digits and basic punctuation stripped. The first
// error is returned after every chunk has been tried.
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) error {
	var firstErr error
	for _, chunk := range format.SplitMessage(text, m.maxLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.sendChunk(chatID, chunk, false); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendMarkdown sends text with **bold**, _italic_ and `code` markup turned
// into message entities.
func (m *Messenger) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	var firstErr error
	for _, chunk := range format.SplitMessage(text, m.maxLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.sendChunk(chatID, chunk, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Messenger) SendTyping(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("failed to send typing action: %w", err)
	}
	return nil
}

func (m *Messenger) sendChunk(chatID int64, chunk string, markdown bool) error {
	msg := tgbotapi.NewMessage(chatID, chunk)
	if markdown {
		parsed := format.ParseMarkdown(chunk)
		msg.Text = parsed.Text
		msg.Entities = parsed.Entities
	}
	_, err := m.api.Send(msg)
	if err == nil {
		return nil
	}
	logrus.WithError(err).WithField("chat_id", chatID).Warn("Failed to send message chunk, retrying as plain text")

	plain := format.StripUnsafe(chunk)
	if _, err := m.api.Send(tgbotapi.NewMessage(chatID, plain)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
