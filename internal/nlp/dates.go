package nlp

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ISODate is the layout produced by date normalization.
const ISODate = "2006-01-02"

// DateNormalizer parses free-form date text into an ISO date.
type DateNormalizer interface {
	// Normalize returns the ISO date and true, or "" and false when text is not a date.
	Normalize(text string) (string, bool)
}

// DateparseNormalizer normalizes dates with dateparse, resolving ambiguous
// numeric dates month first.
type DateparseNormalizer struct {
	loc *time.Location
}

// NewDateNormalizer returns a normalizer evaluating dates in loc (UTC when nil).
func NewDateNormalizer(loc *time.Location) *DateparseNormalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &DateparseNormalizer{loc: loc}
}

var ordinalSuffix = regexp.MustCompile(`(\d)(st|nd|rd|th)\b`)

// Normalize implements DateNormalizer.
func (d *DateparseNormalizer) Normalize(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", false
	}
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "the "), "on ")
	t, err := dateparse.ParseIn(s, d.loc)
	if err != nil {
		return "", false
	}
	return t.Format(ISODate), true
}

const monthPattern = `(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)`

// datePattern finds date mentions for taggers without a native DATE label.
var datePattern = regexp.MustCompile(
	`\b(?:` +
		monthPattern + `\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}` +
		`|\d{1,2}(?:st|nd|rd|th)?\s+` + monthPattern + `\.?,?\s+\d{4}` +
		`|\d{4}-\d{2}-\d{2}` +
		`|\d{1,2}/\d{1,2}/\d{4}` +
		`|` + monthPattern + `\s+\d{4}` +
		`)\b`)

// FindDateSpans returns DATE spans found by pattern in text.
func FindDateSpans(text string) []Span {
	locs := datePattern.FindAllStringIndex(text, -1)
	spans := make([]Span, 0, len(locs))
	for _, loc := range locs {
		spans = append(spans, Span{Label: LabelDate, Text: text[loc[0]:loc[1]], Start: loc[0]})
	}
	return spans
}
