package format

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseResult is text with its markup removed plus the entities describing it.
type ParseResult struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

// UTF16Len counts UTF-16 code units, the unit Telegram uses for entity
// offsets and lengths.
func UTF16Len(s string) int {
	length := 0
	for _, b := range []byte(s) {
		if (b & 0xc0) != 0x80 {
			if b >= 0xf0 {
				length += 2 // surrogate pair
			} else {
				length++
			}
		}
	}
	return length
}

var (
	headerRe = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)$`)

	// alternatives are tried left to right at each position, so ** wins over *
	markupRe = regexp.MustCompile("\\*\\*(.+?)\\*\\*|__(.+?)__|`([^`\n]+)`|\\*([^*\n]+)\\*|_([^_\n]+)_")
)

// markup groups in markupRe order
var markupTypes = []string{"bold", "bold", "code", "italic", "italic"}

// ParseMarkdown turns **bold**, __bold__, `code`, *italic*, _italic_ and
// # headers into message entities. Markers are removed in a single pass so
// every offset refers to the final text. Single underscores or stars inside
// a word, as in list_reminders, are left alone.
func ParseMarkdown(text string) ParseResult {
	text = headerRe.ReplaceAllString(text, "**$1**")

	var (
		out      strings.Builder
		entities []tgbotapi.MessageEntity
		outLen   int
		last     int
	)
	for _, loc := range markupRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		group := -1
		for g := range markupTypes {
			if loc[2+2*g] != -1 {
				group = g
				break
			}
		}
		if group < 0 {
			continue
		}
		if markupTypes[group] == "italic" && insideWord(text, start, end) {
			continue
		}

		before := text[last:start]
		out.WriteString(before)
		outLen += UTF16Len(before)

		inner := text[loc[2+2*group]:loc[3+2*group]]
		n := UTF16Len(inner)
		entities = append(entities, tgbotapi.MessageEntity{Type: markupTypes[group], Offset: outLen, Length: n})
		out.WriteString(inner)
		outLen += n
		last = end
	}
	out.WriteString(text[last:])

	return ParseResult{
		Text:     strings.TrimRight(out.String(), " \n"),
		Entities: entities,
	}
}

// insideWord reports whether the match at text[start:end] is glued to a
// letter or digit on either side.
func insideWord(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
