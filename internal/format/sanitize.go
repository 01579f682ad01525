package format

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var sanitizer = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	"&", "&amp;",
	"*", "",
	"_", "",
	"`", "",
	"[", "(",
	"]", ")",
	"|", "",
	"~", "",
	"#", "",
	"+", "",
	"=", "",
	"{", "(",
	"}", ")",
)

// Sanitize removes characters that trip up Telegram's markup parsers.
func Sanitize(text string) string {
	return sanitizer.Replace(text)
}

// StripUnsafe keeps letters, digits, whitespace and basic punctuation. It is
// the last resort when Telegram rejects a message.
func StripUnsafe(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || strings.ContainsRune(",.?!:;()[]{}", r) {
			return r
		}
		return -1
	}, text)
}

type Link struct {
	Title string
	URL   string
}

const maxReferences = 10

var citationRe = regexp.MustCompile(`\(\d+\)`)

// References lists the sources as numbered links when the answer cites them
// as (1), (2) and so on. It returns "" otherwise.
func References(text string, links []Link) string {
	if len(links) == 0 || !citationRe.MatchString(text) {
		return ""
	}
	if len(links) > maxReferences {
		links = links[:maxReferences]
	}

	var b strings.Builder
	b.WriteString("Source links:\n")
	for i, l := range links {
		title, url := l.Title, l.URL
		if title == "" {
			title = "Source"
		}
		if url == "" {
			url = "#"
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, title, url)
	}
	return b.String()
}
