// Package nlp provides the language capabilities the ingestion pipeline depends on:
// token counting, entity tagging with sentence segmentation, and date normalization.
package nlp

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used for token budgets.
const DefaultEncoding = "cl100k_base"

// Tokenizer returns the length of text in model tokens. Implementations must be
// deterministic and safe for concurrent use.
type Tokenizer interface {
	CountTokens(text string) (int, error)
}

// TiktokenTokenizer counts tokens with a tiktoken BPE encoding.
type TiktokenTokenizer struct {
	encoding string
	tke      *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads the named encoding (cl100k_base when empty).
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenTokenizer{encoding: encoding, tke: tke}, nil
}

// CountTokens implements Tokenizer.
func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return len(t.tke.EncodeOrdinary(text)), nil
}

// Encoding returns the encoding name.
func (t *TiktokenTokenizer) Encoding() string { return t.encoding }

// RuneCounter measures length in characters. It is used with the character
// budgets when no model tokenizer is configured.
type RuneCounter struct{}

// CountTokens implements Tokenizer.
func (RuneCounter) CountTokens(text string) (int, error) {
	return utf8.RuneCountInString(text), nil
}

// WordCounter counts whitespace separated words.
type WordCounter struct{}

// CountTokens implements Tokenizer.
func (WordCounter) CountTokens(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

// LenFunc adapts a Tokenizer to a plain length function for splitters that
// cannot return errors. The first failure is recorded and reported by Err;
// after a failure the function returns 0.
type LenFunc struct {
	tok Tokenizer
	mu  sync.Mutex
	err error
}

// NewLenFunc wraps tok.
func NewLenFunc(tok Tokenizer) *LenFunc {
	return &LenFunc{tok: tok}
}

// Len returns the token length of s.
func (l *LenFunc) Len(s string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0
	}
	n, err := l.tok.CountTokens(s)
	if err != nil {
		l.err = err
		return 0
	}
	return n
}

// Err returns the first tokenizer error, if any.
func (l *LenFunc) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
