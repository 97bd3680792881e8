package indexer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/nlp"
)

// LabelCategories maps tagger labels onto entity categories. Labels not
// listed are ignored.
var LabelCategories = map[string]models.EntityCategory{
	nlp.LabelPerson: models.EntityPerson,
	nlp.LabelOrg:    models.EntityOrganization,
	nlp.LabelGPE:    models.EntityLocation,
	nlp.LabelLoc:    models.EntityLocation,
	nlp.LabelDate:   models.EntityDate,
	nlp.LabelEvent:  models.EntityEvent,
}

// eventPattern matches capitalized phrases ending in an event noun. The
// optional leading article is not part of the captured name.
var eventPattern = regexp.MustCompile(
	`(?:[Tt]he\s+)?([A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)*\s+(?:Conference|Summit|Meeting|Workshop|Symposium))`)

const maxConceptWords = 3

// EntityExtractor builds the per-chunk entity mapping from tagger output,
// date normalization and pattern rules.
type EntityExtractor struct {
	tagger nlp.EntityTagger
	dates  nlp.DateNormalizer
}

// NewEntityExtractor creates an extractor.
func NewEntityExtractor(tagger nlp.EntityTagger, dates nlp.DateNormalizer) *EntityExtractor {
	return &EntityExtractor{tagger: tagger, dates: dates}
}

// Extract returns every entity category for text, each deduplicated and sorted.
// Empty text yields all categories with empty lists.
func (e *EntityExtractor) Extract(text string) (models.Entities, error) {
	entities := models.NewEntities()
	if strings.TrimSpace(text) == "" {
		return entities, nil
	}
	analysis, err := e.tagger.Analyze(text)
	if err != nil {
		return nil, models.Collaborator("tagger", "extract entities", err)
	}

	for _, span := range analysis.Entities {
		category, ok := LabelCategories[span.Label]
		if !ok {
			continue
		}
		value := strings.TrimSpace(span.Text)
		if category == models.EntityDate {
			// Unparseable dates are kept as written.
			if iso, ok := e.dates.Normalize(value); ok {
				value = iso
			}
		}
		entities.Add(category, value)
	}

	for _, m := range eventPattern.FindAllStringSubmatch(text, -1) {
		entities.Add(models.EntityEvent, m[1])
	}

	for _, np := range analysis.NounPhrases {
		np = strings.TrimSpace(np)
		if isConcept(np) && !entities.Contains(np) {
			entities.Add(models.EntityConcept, np)
		}
	}

	entities.Normalize()
	return entities, nil
}

func isConcept(np string) bool {
	if np == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(np)
	return unicode.IsUpper(first) && len(strings.Fields(np)) <= maxConceptWords
}
