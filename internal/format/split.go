package format

import "strings"

// MaxMessageLength stays a little under Telegram's 4096 limit.
const MaxMessageLength = 4000

// SplitMessage breaks text into chunks of at most max UTF-16 units, keeping
// paragraphs together where possible and falling back to word boundaries.
// Words longer than max are cut.
func SplitMessage(text string, max int) []string {
	if max <= 0 {
		max = MaxMessageLength
	}
	if UTF16Len(text) <= max {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	var chunks []string
	current := ""
	flush := func() {
		if strings.TrimSpace(current) != "" {
			chunks = append(chunks, current)
		}
		current = ""
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		if current == "" && UTF16Len(paragraph) <= max {
			current = paragraph
			continue
		}
		if current != "" && UTF16Len(current)+2+UTF16Len(paragraph) <= max {
			current += "\n\n" + paragraph
			continue
		}
		flush()
		if UTF16Len(paragraph) <= max {
			current = paragraph
			continue
		}

		for _, word := range strings.Split(paragraph, " ") {
			for UTF16Len(word) > max {
				flush()
				head, tail := cutUTF16(word, max)
				chunks = append(chunks, head)
				word = tail
			}
			switch {
			case current == "":
				current = word
			case UTF16Len(current)+1+UTF16Len(word) <= max:
				current += " " + word
			default:
				flush()
				current = word
			}
		}
	}
	flush()
	return chunks
}

// cutUTF16 splits s after at most n UTF-16 units without breaking a rune.
func cutUTF16(s string, n int) (string, string) {
	units := 0
	for i, r := range s {
		w := 1
		if r > 0xFFFF {
			w = 2
		}
		if units+w > n {
			return s[:i], s[i:]
		}
		units += w
	}
	return s, ""
}
