package nlp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"
)

// ProseTagger implements EntityTagger with prose's segmenter, part-of-speech
// tagger and named entity extractor. DATE spans, which the prose model does not
// label, are added by pattern.
type ProseTagger struct {
	logger *zap.Logger
}

// ProseOption configures a ProseTagger.
type ProseOption func(*ProseTagger)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ProseOption {
	return func(t *ProseTagger) {
		t.logger = l
	}
}

// proseLabels maps the labels of prose's entity model onto the native labels.
// Labels not listed are passed through unchanged.
var proseLabels = map[string]string{
	"ORGANIZATION": LabelOrg,
	"LOCATION":     LabelLoc,
}

func nativeLabel(label string) string {
	if l, ok := proseLabels[label]; ok {
		return l
	}
	return label
}

// NewProseTagger creates a prose-backed tagger.
func NewProseTagger(opts ...ProseOption) *ProseTagger {
	t := &ProseTagger{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Analyze implements EntityTagger.
func (t *ProseTagger) Analyze(text string) (*Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return &Analysis{}, nil
	}
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze text: %w", err)
	}

	a := &Analysis{}

	pos := 0
	for _, s := range doc.Sentences() {
		st := strings.TrimSpace(s.Text)
		if st == "" {
			continue
		}
		start := locate(text, st, pos)
		if start < 0 {
			t.logger.Debug("sentence not located", zap.String("sentence", st))
			continue
		}
		a.Sentences = append(a.Sentences, Sentence{Start: start, Text: st})
		pos = start + len(st)
	}

	pos = 0
	for _, e := range doc.Entities() {
		start := locate(text, e.Text, pos)
		if start >= 0 {
			pos = start + len(e.Text)
		}
		a.Entities = append(a.Entities, Span{Label: nativeLabel(e.Label), Text: e.Text, Start: start})
	}
	a.Entities = append(a.Entities, FindDateSpans(text)...)
	sort.SliceStable(a.Entities, func(i, j int) bool {
		return a.Entities[i].Start < a.Entities[j].Start
	})

	a.NounPhrases = nounPhrases(text, doc.Tokens())
	return a, nil
}

// locate finds needle in text at or after from, retrying from the start so a
// mention reported out of order is still placed.
func locate(text, needle string, from int) int {
	if needle == "" {
		return -1
	}
	if from < len(text) {
		if i := strings.Index(text[from:], needle); i >= 0 {
			return from + i
		}
	}
	return strings.Index(text, needle)
}

// nounPhrases groups maximal runs of adjectives and nouns, requiring the run
// to end in a noun. A run never continues across a line break in text, so a
// heading does not merge with the sentence below it.
func nounPhrases(text string, tokens []prose.Token) []string {
	var (
		out    []string
		run    []string
		lastNN bool
		pos    int
	)
	flush := func() {
		if len(run) > 0 && lastNN {
			out = append(out, strings.Join(run, " "))
		}
		run = run[:0]
		lastNN = false
	}
	for _, tok := range tokens {
		if i := strings.Index(text[pos:], tok.Text); i >= 0 && tok.Text != "" {
			if strings.ContainsRune(text[pos:pos+i], '\n') {
				flush()
			}
			pos += i + len(tok.Text)
		}
		switch {
		case strings.HasPrefix(tok.Tag, "NN"):
			run = append(run, tok.Text)
			lastNN = true
		case tok.Tag == "JJ":
			if lastNN {
				flush()
			}
			run = append(run, tok.Text)
		default:
			flush()
		}
	}
	flush()
	return out
}
