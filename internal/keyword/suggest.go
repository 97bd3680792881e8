package keyword

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Suggester proposes a corrected query from the indexed term dictionary.
type Suggester struct {
	dictionary  TermDictionary
	maxDistance int
	minFreq     int
}

// SuggesterOption configures a Suggester.
type SuggesterOption func(*Suggester)

// WithMaxDistance sets the maximum edit distance for a correction.
func WithMaxDistance(d int) SuggesterOption {
	return func(s *Suggester) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency ignores dictionary terms seen in fewer than f chunks.
func WithMinFrequency(f int) SuggesterOption {
	return func(s *Suggester) {
		if f >= 0 {
			s.minFreq = f
		}
	}
}

// NewSuggester creates a Suggester over dict.
func NewSuggester(dict TermDictionary, opts ...SuggesterOption) *Suggester {
	s := &Suggester{dictionary: dict, maxDistance: 2, minFreq: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type candidate struct {
	term     string
	distance int
	freq     int
}

// Suggest rewrites each unknown query term to its closest known term. It
// reports false when no term changed.
func (s *Suggester) Suggest(query string) (string, bool, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return query, false, nil
	}
	dict, err := s.dictionary.Terms()
	if err != nil {
		return query, false, err
	}

	changed := false
	out := make([]string, len(terms))
	for i, term := range terms {
		out[i] = term
		if _, known := dict[term]; known {
			continue
		}
		if best, ok := s.closest(term, dict); ok {
			out[i] = best
			changed = true
		}
	}
	if !changed {
		return query, false, nil
	}
	return strings.Join(out, " "), true, nil
}

func (s *Suggester) closest(term string, dict map[string]int) (string, bool) {
	var cands []candidate
	n := utf8.RuneCountInString(term)
	for known, freq := range dict {
		if freq < s.minFreq {
			continue
		}
		diff := utf8.RuneCountInString(known) - n
		if diff < 0 {
			diff = -diff
		}
		if diff > s.maxDistance {
			continue
		}
		if d := editDistance(term, known); d <= s.maxDistance {
			cands = append(cands, candidate{term: known, distance: d, freq: freq})
		}
	}
	if len(cands) == 0 {
		return "", false
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].distance != cands[j].distance {
			return cands[i].distance < cands[j].distance
		}
		if cands[i].freq != cands[j].freq {
			return cands[i].freq > cands[j].freq
		}
		return cands[i].term < cands[j].term
	})
	return cands[0].term, true
}

// editDistance is the Damerau-Levenshtein (optimal string alignment) distance
// over runes, so "teh" is one edit from "the".
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	d := make([][]int, len(ra)+1)
	for i := range d {
		d[i] = make([]int, len(rb)+1)
		d[i][0] = i
	}
	for j := range d[0] {
		d[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+cost)
			}
		}
	}
	return d[len(ra)][len(rb)]
}
