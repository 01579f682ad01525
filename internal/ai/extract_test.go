package ai

import "testing"

func TestExtract(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		showThinking bool
		reasoning    bool
		want         Extraction
	}{
		{
			name:         "think tags",
			raw:          "<think>\nA because B\n</think>\n\nFinal answer.",
			showThinking: true,
			want:         Extraction{Thinking: "A because B", Answer: "Final answer.", HasThinking: true},
		},
		{
			name:         "think tags on non-reasoning model",
			raw:          "<think>x</think>y",
			showThinking: true,
			reasoning:    false,
			want:         Extraction{Thinking: "x", Answer: "y", HasThinking: true},
		},
		{
			name:         "escaped sentinel and tags",
			raw:          "&amp;lt;｜Assistant｜&amp;gt;&amp;lt;think&amp;gt;why&amp;lt;/think&amp;gt; what",
			showThinking: true,
			want:         Extraction{Thinking: "why", Answer: "what", HasThinking: true},
		},
		{
			name:         "raw sentinel stripped without thinking",
			raw:          "<｜Assistant｜> Hello there",
			showThinking: false,
			want:         Extraction{Answer: "Hello there"},
		},
		{
			name:         "thinking not requested keeps tags",
			raw:          "<think>x</think>y",
			showThinking: false,
			want:         Extraction{Answer: "<think>x</think>y"},
		},
		{
			name:         "answer marker drops trailing reasoning",
			raw:          "I looked it up.\n\n📝 Answer: Paris.\n\nHere's my reasoning process: more notes",
			showThinking: true,
			reasoning:    true,
			want:         Extraction{Thinking: "I looked it up.", Answer: "Paris.", HasThinking: true},
		},
		{
			name:         "labeled reasoning and answer",
			raw:          "Reasoning: check the map\n\nAnswer: Paris",
			showThinking: true,
			reasoning:    true,
			want:         Extraction{Thinking: "check the map", Answer: "Paris", HasThinking: true},
		},
		{
			name:         "labeled analysis and conclusion",
			raw:          "Analysis: many factors\n\nConclusion: it depends",
			showThinking: true,
			reasoning:    true,
			want:         Extraction{Thinking: "many factors", Answer: "it depends", HasThinking: true},
		},
		{
			name:         "labels ignored for non-reasoning models",
			raw:          "Reasoning: check the map\n\nAnswer: Paris",
			showThinking: true,
			reasoning:    false,
			want:         Extraction{Answer: "Reasoning: check the map\n\nAnswer: Paris"},
		},
		{
			name:         "horizontal rule",
			raw:          "first I thought\n---\nthe answer",
			showThinking: true,
			reasoning:    true,
			want:         Extraction{Thinking: "first I thought", Answer: "the answer", HasThinking: true},
		},
		{
			name:         "paragraph bisection",
			raw:          "p1\n\np2\n\np3\n\np4",
			showThinking: true,
			reasoning:    true,
			want:         Extraction{Thinking: "p1\n\np2", Answer: "p3\n\np4", HasThinking: true},
		},
		{
			name:         "no structure",
			raw:          "  Just one paragraph.\n\nAnd a second.  ",
			showThinking: true,
			reasoning:    true,
			want:         Extraction{Answer: "Just one paragraph.\n\nAnd a second."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.raw, tt.showThinking, tt.reasoning)
			if got != tt.want {
				t.Errorf("Extract() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
