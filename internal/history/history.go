// Package history keeps the bounded per-user conversation log and shapes it
// into the strictly alternating sequence the chat API accepts.
package history

import "strings"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const DefaultSystemPrompt = "You are a helpful AI assistant powered by Perplexity's Sonar API."

// Entry is one turn of the conversation. Stored as JSON in the user row.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Policy decides what happens when a turn has the same role as the last one.
type Policy int

const (
	// ReplaceSameRole overwrites the previous entry's content.
	ReplaceSameRole Policy = iota
	// AppendAlways keeps every turn; Format collapses runs later.
	AppendAlways
)

func ParsePolicy(s string) Policy {
	if strings.EqualFold(s, "append") {
		return AppendAlways
	}
	return ReplaceSameRole
}

type Manager struct {
	Policy       Policy
	StoreLimit   int
	RequestLimit int
	SystemPrompt string
}

func NewManager(policy Policy, storeLimit, requestLimit int) *Manager {
	return &Manager{
		Policy:       policy,
		StoreLimit:   storeLimit,
		RequestLimit: requestLimit,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// Append returns the log with the new turn applied and trimmed to StoreLimit.
// The input slice is not modified.
func (m *Manager) Append(log []Entry, role, content string) []Entry {
	out := make([]Entry, len(log), len(log)+1)
	copy(out, log)

	if m.Policy == ReplaceSameRole && len(out) > 0 && out[len(out)-1].Role == role {
		out[len(out)-1].Content = content
	} else {
		out = append(out, Entry{Role: role, Content: content})
	}

	if m.StoreLimit > 0 && len(out) > m.StoreLimit {
		out = out[len(out)-m.StoreLimit:]
	}
	return out
}

// Format builds the request history: one system entry followed by user and
// assistant turns in strict alternation, starting with a user turn. It may end
// with one unanswered user turn. A run of same-role turns keeps the latest.
func (m *Manager) Format(log []Entry) []Entry {
	prompt := m.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	out := []Entry{{Role: RoleSystem, Content: prompt}}

	window := log
	if m.RequestLimit > 0 && len(window) > m.RequestLimit {
		window = window[len(window)-m.RequestLimit:]
	}

	for _, e := range window {
		if e.Role != RoleUser && e.Role != RoleAssistant {
			continue
		}
		last := out[len(out)-1]
		switch {
		case last.Role == RoleSystem && e.Role == RoleAssistant:
			// a conversation may not open with the assistant
			continue
		case last.Role == e.Role:
			out[len(out)-1] = e
		default:
			out = append(out, e)
		}
	}
	return out
}
