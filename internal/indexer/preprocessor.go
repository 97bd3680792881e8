package indexer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/nlp"
	"golang.org/x/text/unicode/norm"
)

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n\s*`)
	repeatedSpaces = regexp.MustCompile(` +`)
)

// Normalize applies NFKC normalization and collapses redundant whitespace
// while keeping paragraph breaks.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = paragraphBreak.ReplaceAllString(text, "\n\n")
	text = repeatedSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// MetadataConfig bounds metadata extraction.
type MetadataConfig struct {
	// Window is the number of leading characters searched for authors and dates.
	Window int
	// TitleMaxLen is the exclusive upper bound on title length.
	TitleMaxLen int
	// MaxAuthors is the number of PERSON names kept as authors.
	MaxAuthors int
}

// DefaultMetadataConfig returns the default bounds.
func DefaultMetadataConfig() MetadataConfig {
	return MetadataConfig{Window: 5000, TitleMaxLen: 100, MaxAuthors: 2}
}

// extractMetadata derives title, author and creation date from the head of text.
func extractMetadata(analysis *nlp.Analysis, text string, dates nlp.DateNormalizer, cfg MetadataConfig) map[string]string {
	meta := make(map[string]string)

	units := sentenceUnits(text, analysis.Sentences)
	if len(units) > 0 && utf8.RuneCountInString(units[0].text) < cfg.TitleMaxLen {
		meta[models.MetaTitle] = units[0].text
	}

	var authors []string
	seen := make(map[string]struct{})
	for _, span := range analysis.EntitiesWithLabel(nlp.LabelPerson) {
		name := strings.TrimSpace(span.Text)
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		seen[name] = struct{}{}
		authors = append(authors, name)
		if len(authors) == cfg.MaxAuthors {
			break
		}
	}
	if len(authors) > 0 {
		meta[models.MetaAuthor] = strings.Join(authors, ", ")
	}

	for _, span := range analysis.EntitiesWithLabel(nlp.LabelDate) {
		if iso, ok := dates.Normalize(span.Text); ok {
			meta[models.MetaCreationDate] = iso
			break
		}
	}
	return meta
}

// headOf returns at most n leading runes of s.
func headOf(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
