package timeparse

import (
	"regexp"
	"strings"
)

var reminderIntent = []*regexp.Regexp{
	regexp.MustCompile(`(?i)remind me`),
	regexp.MustCompile(`(?i)(?:set|create|add|schedule)\s+(?:a|an)\s+reminder`),
}

var leadIns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)remind me to `),
	regexp.MustCompile(`(?i)remind me `),
	regexp.MustCompile(`(?i)(?:set|create|add|schedule) (?:a|an) reminder (?:to|for) `),
}

// Trailing timing clauses, stripped one after another from the end.
var timingClauses = []*regexp.Regexp{
	regexp.MustCompile(`(?i) at \d{1,2}:\d{2}(?: ?[ap]m)?$`),
	regexp.MustCompile(`(?i) on \d{1,2}[./-]\d{1,2}[./-](?:\d{4}|\d{2})$`),
	regexp.MustCompile(`(?i) in \d+ (?:second|minute|hour|day|week)s?$`),
	regexp.MustCompile(`(?i) tomorrow$`),
	regexp.MustCompile(`(?i) next week$`),
	regexp.MustCompile(`(?i) every day$`),
	regexp.MustCompile(`(?i) every (?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`),
	regexp.MustCompile(`(?i) every \d{1,2}(?:st|nd|rd|th)? of (?:each|every) month$`),
}

// IsReminderRequest reports whether text asks for a reminder.
func IsReminderRequest(text string) bool {
	for _, re := range reminderIntent {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ExtractText strips the request phrasing and trailing time expressions,
// leaving what the user wants to be reminded about.
func ExtractText(text string) string {
	cleaned := text
	for _, re := range leadIns {
		if loc := re.FindStringIndex(cleaned); loc != nil {
			cleaned = cleaned[:loc[0]] + cleaned[loc[1]:]
			break
		}
	}

	for _, re := range timingClauses {
		cleaned = re.ReplaceAllString(cleaned, "")
	}

	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "Reminder"
	}
	return cleaned
}
