// Package indexer turns raw text into linked, entity-annotated chunks and
// indexes them into the source store, vector database and keyword index.
package indexer

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/nlp"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
)

// Separators in order of preference: paragraph, line, word, then a hard cut.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// SkipFunc is called once for every split chunk that cannot be aligned with
// the source text.
type SkipFunc func(sourceID string, ordinal int)

// TextChunker splits normalized text into overlapping, section-aware chunks
// measured with a Tokenizer.
type TextChunker struct {
	tokenizer    nlp.Tokenizer
	tagger       nlp.EntityTagger
	chunkSize    int
	chunkOverlap int
	onSkip       SkipFunc
	logger       *zap.Logger
}

// ChunkerOption configures a TextChunker.
type ChunkerOption func(*TextChunker)

// WithChunkerLogger sets the logger used for alignment warnings.
func WithChunkerLogger(l *zap.Logger) ChunkerOption {
	return func(c *TextChunker) { c.logger = l }
}

// WithSkipFunc registers a callback for dropped chunks.
func WithSkipFunc(fn SkipFunc) ChunkerOption {
	return func(c *TextChunker) { c.onSkip = fn }
}

// NewTextChunker creates a chunker with the given size and overlap, both in tokenizer units.
func NewTextChunker(tokenizer nlp.Tokenizer, tagger nlp.EntityTagger, chunkSize, chunkOverlap int, opts ...ChunkerOption) *TextChunker {
	c := &TextChunker{
		tokenizer:    tokenizer,
		tagger:       tagger,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChunkResult is the output of CreateChunks.
type ChunkResult struct {
	Chunks  []*models.Chunk
	Skipped int
}

// CreateChunks splits text into chunks owned by sourceID, in textual order.
// A split chunk that cannot be located in text is dropped and counted in Skipped.
func (c *TextChunker) CreateChunks(sourceID, text string) (*ChunkResult, error) {
	result := &ChunkResult{}
	if strings.TrimSpace(text) == "" {
		return result, nil
	}

	raw, err := c.split(text)
	if err != nil {
		return nil, err
	}
	headers, err := c.detectHeaders(text)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cursor := newRuneCursor(text)
	prevStart, prevEnd := -1, 0
	for i, piece := range raw {
		start := c.locate(text, piece, prevStart, prevEnd)
		if start < 0 {
			result.Skipped++
			c.logger.Warn("chunk alignment skipped",
				zap.String("source_id", sourceID),
				zap.Int("ordinal", i),
				zap.Int("search_from", prevEnd))
			if c.onSkip != nil {
				c.onSkip(sourceID, i)
			}
			continue
		}
		end := start + len(piece)
		prevStart, prevEnd = start, end

		startRune := cursor.runeOffset(start)
		chunk := &models.Chunk{
			ID:           uuid.New().String(),
			SourceID:     sourceID,
			Content:      piece,
			StartIndex:   startRune,
			EndIndex:     startRune + utf8.RuneCountInString(piece),
			SectionTitle: headers.titleAt(start),
			Entities:     models.NewEntities(),
			CreatedAt:    now,
		}
		result.Chunks = append(result.Chunks, chunk)
	}

	LinkChunks(result.Chunks)
	return result, nil
}

func (c *TextChunker) split(text string) ([]string, error) {
	lenFunc := nlp.NewLenFunc(c.tokenizer)
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.chunkSize),
		textsplitter.WithChunkOverlap(c.chunkOverlap),
		textsplitter.WithSeparators(defaultSeparators),
		textsplitter.WithLenFunc(lenFunc.Len),
	)
	raw, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	if err := lenFunc.Err(); err != nil {
		return nil, models.Collaborator("tokenizer", "count tokens", err)
	}
	return raw, nil
}

// locate returns the byte offset of piece in text. Without overlap the search
// starts at the end of the previous chunk. With overlap it starts one byte
// after the previous chunk's start rather than at its end, since an
// overlapping chunk begins inside the previous one and a search from the end
// would miss it or land on a later repeat of the same text. The result is
// always greater than prevStart.
func (c *TextChunker) locate(text, piece string, prevStart, prevEnd int) int {
	if piece == "" {
		return -1
	}
	from := prevEnd
	if c.chunkOverlap > 0 && prevStart >= 0 {
		from = prevStart + 1
	}
	if from > len(text) {
		return -1
	}
	i := strings.Index(text[from:], piece)
	if i < 0 {
		return -1
	}
	return from + i
}

// LinkChunks sets previous and next ids on consecutive chunks. The first chunk
// has no previous and the last has no next.
func LinkChunks(chunks []*models.Chunk) {
	for i, ch := range chunks {
		ch.PreviousChunkID = ""
		ch.NextChunkID = ""
		if i > 0 {
			ch.PreviousChunkID = chunks[i-1].ID
		}
		if i < len(chunks)-1 {
			ch.NextChunkID = chunks[i+1].ID
		}
	}
}

// runeCursor converts non-decreasing byte offsets into rune offsets without
// rescanning from the start of the text.
type runeCursor struct {
	text  string
	bytes int
	runes int
}

func newRuneCursor(text string) *runeCursor {
	return &runeCursor{text: text}
}

func (rc *runeCursor) runeOffset(b int) int {
	if b < rc.bytes {
		rc.bytes, rc.runes = 0, 0
	}
	rc.runes += utf8.RuneCountInString(rc.text[rc.bytes:b])
	rc.bytes = b
	return rc.runes
}
