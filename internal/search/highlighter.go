package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/kura/pkg/utils"
)

// Snippet returns about maxLen runes of content around the first query word
// it contains, with ellipses marking cut ends. Without a match it is the head
// of content.
func Snippet(content, query string, maxLen int) string {
	content = strings.Join(strings.Fields(content), " ")
	if maxLen <= 0 || utf8.RuneCountInString(content) <= maxLen {
		return content
	}
	lower := strings.ToLower(content)
	pos := -1
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if i := strings.Index(lower, w); i >= 0 && (pos < 0 || i < pos) {
			pos = i
		}
	}
	if pos < 0 {
		return utils.Truncate(content, maxLen)
	}

	runes := []rune(content)
	center := utf8.RuneCountInString(content[:pos])
	start := center - maxLen/3
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end > len(runes) {
		end = len(runes)
		start = max(0, end-maxLen)
	}
	out := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}
