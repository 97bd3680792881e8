// Package keyword keeps a full-text index of chunk text. It scores how many
// query terms each retrieved chunk contains and suggests spellings for queries
// that retrieve nothing.
package keyword

import (
	"context"
	"strings"
	"unicode"

	"github.com/hyperjump/kura/internal/models"
)

// Index defines chunk text indexing operations.
type Index interface {
	IndexChunks(ctx context.Context, chunks []*models.Chunk) error
	DeleteSource(ctx context.Context, sourceID string) error
	// Overlap returns, for each of chunkIDs containing at least one query term,
	// the fraction of distinct query terms it contains. Chunks without any
	// query term are absent from the map.
	Overlap(ctx context.Context, query string, chunkIDs []string) (map[string]float64, error)
	// DocCount returns the number of indexed chunks.
	DocCount() (uint64, error)
	Close() error
}

// TermDictionary exposes indexed terms with their document frequency.
type TermDictionary interface {
	Terms() (map[string]int, error)
}

// queryTerms lower-cases query and returns its distinct letter/digit runs in
// order of first appearance. It mirrors the index analyzer.
func queryTerms(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]struct{}, len(words))
	terms := words[:0]
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}
