package ai

import (
	"regexp"
	"strings"
)

// Extraction is a response split into the model's reasoning and its answer.
type Extraction struct {
	Thinking    string
	Answer      string
	HasThinking bool
}

const (
	answerMarker     = "📝 Answer:"
	reasoningTrailer = "Here's my reasoning process:"
)

var assistantSentinel = regexp.MustCompile(`^(?:&amp;lt;｜Assistant｜&amp;gt;|<｜Assistant｜>)`)

// splitter tries to separate reasoning from the answer in content.
type splitter func(content string) (thinking, answer string, ok bool)

// Tried whenever reasoning was requested.
var delimitedSplitters = []splitter{splitThinkTags, splitAnswerMarker}

// Heuristics reserved for models that reason out loud.
var reasoningSplitters = []splitter{splitLabeled, splitStructural, splitParagraphs}

// Extract separates reasoning from the final answer. Without showThinking the
// whole cleaned response is the answer.
func Extract(raw string, showThinking, reasoningModel bool) Extraction {
	content := cleanResponse(raw)
	if !showThinking {
		return Extraction{Answer: content}
	}

	chain := delimitedSplitters
	if reasoningModel {
		chain = append(chain[:len(chain):len(chain)], reasoningSplitters...)
	}
	for _, split := range chain {
		if thinking, answer, ok := split(content); ok {
			return Extraction{Thinking: thinking, Answer: answer, HasThinking: true}
		}
	}
	return Extraction{Answer: content}
}

func cleanResponse(raw string) string {
	content := assistantSentinel.ReplaceAllString(raw, "")
	content = strings.ReplaceAll(content, "&amp;lt;", "<")
	content = strings.ReplaceAll(content, "&amp;gt;", ">")
	return strings.TrimSpace(content)
}

func splitThinkTags(content string) (string, string, bool) {
	start := strings.Index(content, "<think>")
	if start < 0 {
		return "", "", false
	}
	rest := content[start+len("<think>"):]
	end := strings.Index(rest, "</think>")
	if end < 0 {
		return "", "", false
	}
	return strings.TrimSpace(rest[:end]), strings.TrimSpace(rest[end+len("</think>"):]), true
}

func splitAnswerMarker(content string) (string, string, bool) {
	thinking, answer, found := strings.Cut(content, answerMarker)
	if !found {
		return "", "", false
	}
	return strings.TrimSpace(thinking), dropTrailingReasoning(answer), true
}

func dropTrailingReasoning(answer string) string {
	answer, _, _ = strings.Cut(answer, reasoningTrailer)
	return strings.TrimSpace(answer)
}

type labeledPair struct {
	thinking *regexp.Regexp
	answer   *regexp.Regexp
}

var labeledPairs = []labeledPair{
	{regexp.MustCompile(`(?is)Thinking:\s*(.+?)(?:\n\n📝 Answer:|\z)`), regexp.MustCompile(`(?is)📝 Answer:\s*(.+)`)},
	{regexp.MustCompile(`(?is)Here's my reasoning process:\s*(.+?)(?:\n\n📝 Answer:|\z)`), regexp.MustCompile(`(?is)📝 Answer:\s*(.+)`)},
	{regexp.MustCompile(`(?is)Reasoning:\s*(.+?)(?:\n\nAnswer:|\z)`), regexp.MustCompile(`(?is)Answer:\s*(.+)`)},
	{regexp.MustCompile(`(?is)Step by step:\s*(.+?)(?:\n\nResponse:|\z)`), regexp.MustCompile(`(?is)Response:\s*(.+)`)},
	{regexp.MustCompile(`(?is)Analysis:\s*(.+?)(?:\n\nConclusion:|\z)`), regexp.MustCompile(`(?is)Conclusion:\s*(.+)`)},
}

func splitLabeled(content string) (string, string, bool) {
	for _, p := range labeledPairs {
		tm := p.thinking.FindStringSubmatch(content)
		am := p.answer.FindStringSubmatch(content)
		if tm != nil && am != nil {
			return strings.TrimSpace(tm[1]), dropTrailingReasoning(am[1]), true
		}
	}
	return "", "", false
}

var sectionBreak = regexp.MustCompile(`\n\n---\n\n|\n---\n|\n\n#|📝 Answer:`)

func splitStructural(content string) (string, string, bool) {
	parts := sectionBreak.Split(content, -1)
	if len(parts) < 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(strings.Join(parts[1:], "\n\n")), true
}

func splitParagraphs(content string) (string, string, bool) {
	parts := strings.Split(content, "\n\n")
	if len(parts) <= 2 {
		return "", "", false
	}
	mid := len(parts) / 2
	return strings.TrimSpace(strings.Join(parts[:mid], "\n\n")), strings.TrimSpace(strings.Join(parts[mid:], "\n\n")), true
}
