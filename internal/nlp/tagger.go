package nlp

// Native labels produced by taggers. They are mapped onto the closed set of
// entity categories by the indexer.
const (
	LabelPerson = "PERSON"
	LabelOrg    = "ORG"
	LabelGPE    = "GPE"
	LabelLoc    = "LOC"
	LabelDate   = "DATE"
	LabelEvent  = "EVENT"
)

// Sentence is a sentence-like unit with its byte offset in the analyzed text.
type Sentence struct {
	Start int
	Text  string
}

// Span is a labelled entity mention. Start is a byte offset, or -1 when the
// tagger could not place the mention.
type Span struct {
	Label string
	Text  string
	Start int
}

// Analysis is the result of tagging one text.
type Analysis struct {
	Sentences   []Sentence
	Entities    []Span
	NounPhrases []string
}

// EntitiesWithLabel returns the spans carrying label, in order.
func (a *Analysis) EntitiesWithLabel(label string) []Span {
	var out []Span
	for _, s := range a.Entities {
		if s.Label == label {
			out = append(out, s)
		}
	}
	return out
}

// EntityTagger segments text and labels entity spans. Implementations must be
// safe for concurrent use.
type EntityTagger interface {
	Analyze(text string) (*Analysis, error)
}
