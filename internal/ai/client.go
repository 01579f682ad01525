package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/hray3182/SonarBot/internal/history"
)

const (
	DefaultBaseURL     = "https://api.perplexity.ai"
	DefaultTemperature = 0.2
	DefaultTimeout     = 90 * time.Second

	DefaultSystemPrompt = "You are a helpful AI assistant. Provide accurate, detailed responses to questions. " +
		"If you don't know the answer, say so instead of making things up."

	thinkingInstructions = "IMPORTANT: For this question, I want to see your step-by-step reasoning process. " +
		"Please provide your thinking and reasoning within <think></think> tags, " +
		"and then provide your final answer after the closing tag. " +
		"For example: <think>Here's my reasoning...</think> Here's my final answer."
)

// RemoteError is returned for any failed call to the Q&A service.
type RemoteError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API Error: %d - %s", e.StatusCode, e.Message)
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error { return e.Err }

type Client struct {
	client  *openai.Client
	model   string
	catalog *Catalog
}

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Catalog *Catalog

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Model == "" {
		opts.Model = opts.Catalog.Default
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	config := openai.DefaultConfig(opts.APIKey)
	config.BaseURL = opts.BaseURL
	config.HTTPClient = &searchTransport{client: httpClient}

	return &Client{
		client:  openai.NewClientWithConfig(config),
		model:   opts.Model,
		catalog: opts.Catalog,
	}
}

func (c *Client) Catalog() *Catalog {
	return c.catalog
}

type Request struct {
	Query        string
	History      []history.Entry
	Image        []byte
	Model        string
	ShowThinking bool
	SystemPrompt string
	Temperature  float32
	Search       SearchOptions
}

type Response struct {
	Answer      string
	Thinking    string
	HasThinking bool
	Model       string
	Sources     []Source
}

// Ask sends one question with its conversation context.
func (c *Client) Ask(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if req.ShowThinking && !c.catalog.IsReasoning(model) {
		if variant := c.catalog.ThinkingModel(model); variant != model {
			logrus.WithFields(logrus.Fields{"from": model, "to": variant}).Debug("Thinking mode: switching to reasoning model")
			model = variant
		}
	}
	reasoning := c.catalog.IsReasoning(model)

	messages, err := c.buildMessages(req, reasoning)
	if err != nil {
		return nil, err
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	search := req.Search
	if search.ContextSize == "" {
		search.ContextSize = "medium"
	}

	sink := &sourceSink{}
	resp, err := c.client.CreateChatCompletion(withSearch(ctx, search, sink), openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		rerr := toRemoteError(err)
		logrus.WithError(err).WithField("model", model).Error("Q&A request failed")
		return nil, rerr
	}
	if len(resp.Choices) == 0 {
		return nil, &RemoteError{Message: "the service returned no answer"}
	}

	extracted := Extract(resp.Choices[0].Message.Content, req.ShowThinking, reasoning)
	return &Response{
		Answer:      extracted.Answer,
		Thinking:    extracted.Thinking,
		HasThinking: extracted.HasThinking,
		Model:       model,
		Sources:     sink.sources,
	}, nil
}

func (c *Client) buildMessages(req Request, reasoning bool) ([]openai.ChatCompletionMessage, error) {
	prompt := req.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	if req.ShowThinking && reasoning {
		prompt += "\n\n" + thinkingInstructions
	}
	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: prompt}}

	past := req.History
	if len(past) > 0 && past[0].Role == history.RoleSystem {
		past = past[1:]
	}
	// the new query takes the place of an unanswered user turn
	if len(past) > 0 && past[len(past)-1].Role == history.RoleUser {
		past = past[:len(past)-1]
	}
	for _, e := range past {
		messages = append(messages, openai.ChatCompletionMessage{Role: e.Role, Content: e.Content})
	}

	if len(req.Image) == 0 {
		return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Query}), nil
	}

	mime := mimetype.Detect(req.Image)
	if !mime.Is("image/jpeg") && !mime.Is("image/png") && !mime.Is("image/webp") && !mime.Is("image/gif") {
		return nil, &RemoteError{Message: fmt.Sprintf("unsupported image type %s", mime.String())}
	}
	dataURL := "data:" + mime.String() + ";base64," + base64.StdEncoding.EncodeToString(req.Image)

	return append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Query},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto}},
		},
	}), nil
}

func toRemoteError(err error) *RemoteError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &RemoteError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := string(reqErr.Body)
		if msg == "" && reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &RemoteError{StatusCode: reqErr.HTTPStatusCode, Message: msg, Err: err}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &RemoteError{Message: "Request timed out. Please try again later.", Err: err}
	}
	return &RemoteError{Message: "Request error: " + err.Error(), Err: err}
}
