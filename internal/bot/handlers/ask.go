package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/hray3182/SonarBot/internal/ai"
	"github.com/hray3182/SonarBot/internal/format"
	"github.com/hray3182/SonarBot/internal/history"
	"github.com/hray3182/SonarBot/internal/models"
)

const (
	typingInterval = 4 * time.Second
	maxPhotoSize   = 10 << 20

	defaultPhotoCaption = "What's in this image?"

	textProcessingRequest = "🧠 Processing your request... This might take a moment."
	textProcessingImage   = "🧠 Processing your image... This might take a moment."
	textNoImageGeneration = "🖼️ I'm not able to generate images directly.\n\n" +
		"However, you can use dedicated image generation services like DALL-E, Midjourney, " +
		"or Stable Diffusion to create images based on text prompts."
)

var imageRequestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)generate (?:an?|some) images?`),
	regexp.MustCompile(`(?i)create (?:an?|some) images?`),
	regexp.MustCompile(`(?i)make (?:an?|some) images?`),
	regexp.MustCompile(`(?i)draw (?:an?|some)`),
	regexp.MustCompile(`(?i)show me (?:an?|some) images? of`),
	regexp.MustCompile(`(?i)can you (?:generate|create|make|draw) (?:an?|some) images?`),
	regexp.MustCompile(`(?i)^images? of`),
	regexp.MustCompile(`(?i)^generate `),
	regexp.MustCompile(`(?i)^draw `),
}

// isImageRequest reports whether text asks for a picture to be made.
func isImageRequest(text string) bool {
	for _, re := range imageRequestPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (h *Handlers) handleImageRequest(ctx context.Context, msg *tgbotapi.Message) {
	if err := h.messenger.SendTyping(ctx, msg.Chat.ID); err != nil {
		logrus.WithError(err).Debug("Failed to send typing action")
	}
	h.sendMessage(msg.Chat.ID, textNoImageGeneration)
}

func (h *Handlers) handleQuestion(ctx context.Context, msg *tgbotapi.Message, user *models.User, text string) {
	h.logChat(ctx, user.UserID, history.RoleUser, text, user.PreferredModel)
	h.answer(ctx, msg, user, text, nil, textProcessingRequest)
}

func (h *Handlers) handlePhoto(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	caption := msg.Caption
	if caption == "" {
		caption = defaultPhotoCaption
	}
	h.logChat(ctx, user.UserID, history.RoleUser, "[Image] "+caption, user.PreferredModel)

	// the last size is the largest
	photo := msg.Photo[len(msg.Photo)-1]
	image, err := h.downloadFile(ctx, photo.FileID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.UserID).Error("Failed to download photo")
		h.sendMessage(msg.Chat.ID, "❌ An error occurred while processing your image: "+format.Sanitize(err.Error()))
		return
	}
	h.answer(ctx, msg, user, caption, image, textProcessingImage)
}

func (h *Handlers) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := h.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > maxPhotoSize {
		return nil, errors.New("image is too large")
	}
	return data, nil
}

// answer runs one question through the Q&A service and replies with the
// answer, the optional reasoning and the cited sources.
func (h *Handlers) answer(ctx context.Context, msg *tgbotapi.Message, user *models.User, query string, image []byte, loadingText string) {
	chatID := msg.Chat.ID
	log := logrus.WithFields(logrus.Fields{"user_id": user.UserID, "model": user.PreferredModel})

	loading, err := h.api.Send(tgbotapi.NewMessage(chatID, loadingText))
	if err != nil {
		log.WithError(err).Warn("Failed to send loading message")
	}
	stopTyping := h.keepTyping(ctx, chatID)

	resp, err := h.svc.AI.Ask(ctx, ai.Request{
		Query:        query,
		History:      h.history.Format(user.History),
		Image:        image,
		Model:        user.PreferredModel,
		ShowThinking: user.ThinkingMode,
	})

	stopTyping()
	if loading.MessageID != 0 {
		h.deleteMessage(chatID, loading.MessageID)
	}

	if err != nil {
		log.WithError(err).Error("Failed to answer question")
		message := err.Error()
		if serr := h.messenger.SendText(ctx, chatID, "❌ "+format.Sanitize(message)); serr != nil {
			log.WithError(serr).Error("Failed to send error message")
		}
		h.logChat(ctx, user.UserID, history.RoleAssistant, "[Error]: "+message, user.PreferredModel)
		return
	}

	answer := format.Sanitize(resp.Answer)
	showThinking := user.ThinkingMode && resp.HasThinking
	if showThinking {
		header := tgbotapi.NewMessage(chatID, "🧠 Thinking Process:")
		header.ReplyToMessageID = msg.MessageID
		if _, err := h.api.Send(header); err != nil {
			log.WithError(err).Warn("Failed to send thinking header")
		}
		h.sendText(ctx, chatID, format.Sanitize(resp.Thinking))
		h.sendText(ctx, chatID, "📝 Answer:")
	}
	h.sendText(ctx, chatID, answer)

	links := make([]format.Link, len(resp.Sources))
	for i, s := range resp.Sources {
		links[i] = format.Link{Title: s.Title, URL: s.URL}
	}
	if refs := format.References(answer, links); refs != "" {
		h.sendText(ctx, chatID, "📚 Sources:\n"+refs)
	}

	logged := resp.Answer
	if showThinking {
		logged = fmt.Sprintf("[Thinking]: %s\n\n[Answer]: %s", resp.Thinking, resp.Answer)
	}
	h.logChat(ctx, user.UserID, history.RoleAssistant, logged, resp.Model)

	turns := h.history.Append(user.History, history.RoleUser, query)
	turns = h.history.Append(turns, history.RoleAssistant, resp.Answer)
	if err := h.svc.Users.SaveHistory(ctx, user.UserID, turns); err != nil {
		log.WithError(err).Error("Failed to save conversation history")
	}
}

func (h *Handlers) sendText(ctx context.Context, chatID int64, text string) {
	if err := h.messenger.SendText(ctx, chatID, text); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

// keepTyping refreshes the typing indicator until the returned func is called.
func (h *Handlers) keepTyping(ctx context.Context, chatID int64) func() {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			if err := h.messenger.SendTyping(ctx, chatID); err != nil && ctx.Err() == nil {
				logrus.WithError(err).Debug("Failed to send typing action")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
