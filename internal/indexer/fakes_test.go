package indexer

import (
	"sort"
	"strings"

	"github.com/hyperjump/kura/internal/nlp"
)

// fakeTagger treats every line as a sentence and labels the configured
// phrases wherever they occur.
type fakeTagger struct {
	spans       map[string]string // phrase -> label
	nounPhrases []string
	err         error
}

func (f *fakeTagger) Analyze(text string) (*nlp.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	a := &nlp.Analysis{}
	off := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if strings.TrimSpace(line) != "" {
			a.Sentences = append(a.Sentences, nlp.Sentence{Start: off, Text: line})
		}
		off += len(line)
	}
	for phrase, label := range f.spans {
		if i := strings.Index(text, phrase); i >= 0 {
			a.Entities = append(a.Entities, nlp.Span{Label: label, Text: phrase, Start: i})
		}
	}
	sort.Slice(a.Entities, func(i, j int) bool { return a.Entities[i].Start < a.Entities[j].Start })
	for _, np := range f.nounPhrases {
		if strings.Contains(text, np) {
			a.NounPhrases = append(a.NounPhrases, np)
		}
	}
	return a, nil
}

type fakeDates map[string]string

func (d fakeDates) Normalize(text string) (string, bool) {
	iso, ok := d[text]
	return iso, ok
}

const announcement = "ANNOUNCEMENT\n\n" +
	"The Annual Tech Conference will be held on March 15th, 2024 in San Francisco. " +
	"John Smith from Google will be the keynote speaker.\n\n" +
	"SCHEDULE\n\n" +
	"Registration opens at nine in the morning. Talks run until five."

func announcementTagger() *fakeTagger {
	return &fakeTagger{
		spans: map[string]string{
			"March 15th, 2024": nlp.LabelDate,
			"San Francisco":    nlp.LabelGPE,
			"John Smith":       nlp.LabelPerson,
			"Google":           nlp.LabelOrg,
		},
		nounPhrases: []string{"Annual Tech Conference", "keynote speaker", "Tech"},
	}
}

func announcementDates() fakeDates {
	return fakeDates{"March 15th, 2024": "2024-03-15"}
}

// newTestProcessor chunks by whitespace words, 12 per chunk with 3 overlapping.
func newTestProcessor(tagger nlp.EntityTagger, opts ...ChunkerOption) *SourceProcessor {
	chunker := NewTextChunker(nlp.WordCounter{}, tagger, 12, 3, opts...)
	return NewSourceProcessor(tagger, announcementDates(), chunker)
}
