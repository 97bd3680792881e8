package indexer

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/nlp"
)

var (
	markdownHeading = regexp.MustCompile(`^#+\s+`)
	numberedSection = regexp.MustCompile(`^\d+\.\s+[A-Z]`)
)

type header struct {
	offset int
	title  string
}

// headerIndex holds detected headers sorted by byte offset.
type headerIndex []header

// titleAt returns the nearest header at or before offset.
func (h headerIndex) titleAt(offset int) string {
	i := sort.Search(len(h), func(i int) bool { return h[i].offset > offset })
	if i == 0 {
		return ""
	}
	return h[i-1].title
}

// unit is a sentence-like span of text: one line of a tagger sentence.
type unit struct {
	offset int
	text   string
}

// sentenceUnits splits tagger sentences into trimmed, non-empty lines.
// When the tagger finds no sentences the whole text is used.
func sentenceUnits(text string, sentences []nlp.Sentence) []unit {
	if len(sentences) == 0 {
		sentences = []nlp.Sentence{{Start: 0, Text: text}}
	}
	var units []unit
	for _, s := range sentences {
		off := s.Start
		for _, line := range strings.SplitAfter(s.Text, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				lead := len(line) - len(strings.TrimLeftFunc(line, unicode.IsSpace))
				units = append(units, unit{offset: off + lead, text: trimmed})
			}
			off += len(line)
		}
	}
	return units
}

// IsSectionHeader reports whether a sentence-like unit looks like a header:
// entirely upper case, a markdown heading, or a numbered section.
func IsSectionHeader(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return isUpper(s) || markdownHeading.MatchString(s) || numberedSection.MatchString(s)
}

// isUpper reports whether s has at least one cased letter and no lower-case ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func (c *TextChunker) detectHeaders(text string) (headerIndex, error) {
	analysis, err := c.tagger.Analyze(text)
	if err != nil {
		return nil, models.Collaborator("tagger", "segment sentences", err)
	}
	var headers headerIndex
	for _, u := range sentenceUnits(text, analysis.Sentences) {
		if IsSectionHeader(u.text) {
			headers = append(headers, header{offset: u.offset, title: u.text})
		}
	}
	sort.SliceStable(headers, func(i, j int) bool { return headers[i].offset < headers[j].offset })
	return headers, nil
}
