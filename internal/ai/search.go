package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SearchOptions are Perplexity request fields the OpenAI request type has no
// room for.
type SearchOptions struct {
	DomainFilter  []string
	RecencyFilter string // day, week, month, year
	ContextSize   string // low, medium, high
}

type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type ctxKey int

const (
	searchOptionsKey ctxKey = iota
	sourceSinkKey
)

type sourceSink struct {
	sources []Source
}

func withSearch(ctx context.Context, opts SearchOptions, sink *sourceSink) context.Context {
	ctx = context.WithValue(ctx, searchOptionsKey, opts)
	return context.WithValue(ctx, sourceSinkKey, sink)
}

// searchTransport adds search options to outgoing chat requests and collects
// the search results Perplexity returns next to the completion.
type searchTransport struct {
	client *http.Client
}

func (t *searchTransport) Do(req *http.Request) (*http.Response, error) {
	if opts, ok := req.Context().Value(searchOptionsKey).(SearchOptions); ok && req.Body != nil {
		if err := injectSearchOptions(req, opts); err != nil {
			return nil, err
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}

	sink, _ := req.Context().Value(sourceSinkKey).(*sourceSink)
	if sink == nil || resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	sink.sources = parseSources(body)
	return resp, nil
}

func injectSearchOptions(req *http.Request, opts SearchOptions) error {
	raw, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}

	set := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		payload[key] = b
		return nil
	}
	if len(opts.DomainFilter) > 0 {
		if err := set("search_domain_filter", opts.DomainFilter); err != nil {
			return err
		}
	}
	if opts.RecencyFilter != "" {
		if err := set("search_recency_filter", opts.RecencyFilter); err != nil {
			return err
		}
	}
	switch opts.ContextSize {
	case "low", "medium", "high":
		if err := set("web_search_options", map[string]string{"search_context_size": opts.ContextSize}); err != nil {
			return err
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return nil
}

type searchEnvelope struct {
	SearchResults []Source `json:"search_results"`
	Citations     []string `json:"citations"`
	Choices       []struct {
		Message struct {
			Metadata struct {
				SearchResults []Source `json:"search_results"`
			} `json:"metadata"`
		} `json:"message"`
	} `json:"choices"`
}

func parseSources(body []byte) []Source {
	var env searchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	if len(env.SearchResults) > 0 {
		return env.SearchResults
	}
	if len(env.Choices) > 0 && len(env.Choices[0].Message.Metadata.SearchResults) > 0 {
		return env.Choices[0].Message.Metadata.SearchResults
	}
	sources := make([]Source, 0, len(env.Citations))
	for _, url := range env.Citations {
		sources = append(sources, Source{Title: "Source", URL: url})
	}
	return sources
}
