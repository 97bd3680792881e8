package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/hyperjump/kura/internal/models"
)

const (
	textAnalyzer = "kura_text"
	fieldContent = "content"
	fieldSource  = "source_id"
	deleteBatch  = 500
)

// chunkDoc is the indexed form of a chunk.
type chunkDoc struct {
	SourceID     string `json:"source_id"`
	Content      string `json:"content"`
	SectionTitle string `json:"section_title"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path keeps
// the index in memory.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im, err := newMapping()
	if err != nil {
		return nil, err
	}

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// newMapping indexes content with a lower-casing unicode analyzer. Stop words
// and stemming are left out so every query word counts toward overlap.
func newMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(textAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("failed to register analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = textAnalyzer
	docMapping.AddFieldMappingsAt(fieldContent, textFieldMapping)
	docMapping.AddFieldMappingsAt("section_title", textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldSource, bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im, nil
}

// IndexChunks indexes chunks in one batch, replacing entries with the same id.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, ch := range chunks {
		doc := chunkDoc{SourceID: ch.SourceID, Content: ch.Content, SectionTitle: ch.SectionTitle}
		if err := batch.Index(ch.ID, doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", ch.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	return ctx.Err()
}

// DeleteSource removes every chunk of sourceID.
func (b *BleveIndex) DeleteSource(ctx context.Context, sourceID string) error {
	for {
		q := bleve.NewTermQuery(sourceID)
		q.SetField(fieldSource)
		req := bleve.NewSearchRequest(q)
		req.Size = deleteBatch
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to find chunks of source %s: %w", sourceID, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to delete chunks of source %s: %w", sourceID, err)
		}
	}
}

// Overlap runs one term query per distinct query term restricted to chunkIDs
// and counts the terms each chunk matched.
func (b *BleveIndex) Overlap(ctx context.Context, query string, chunkIDs []string) (map[string]float64, error) {
	terms := queryTerms(query)
	out := make(map[string]float64, len(chunkIDs))
	if len(terms) == 0 || len(chunkIDs) == 0 {
		return out, nil
	}

	matched := make(map[string]int, len(chunkIDs))
	for _, term := range terms {
		tq := bleve.NewTermQuery(term)
		tq.SetField(fieldContent)
		req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(bleve.NewDocIDQuery(chunkIDs), tq))
		req.Size = len(chunkIDs)
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to score term %q: %w", term, err)
		}
		for _, hit := range res.Hits {
			matched[hit.ID]++
		}
	}
	for id, n := range matched {
		out[id] = float64(n) / float64(len(terms))
	}
	return out, nil
}

// Terms returns every indexed content term with its document frequency.
func (b *BleveIndex) Terms() (map[string]int, error) {
	dict, err := b.index.FieldDict(fieldContent)
	if err != nil {
		return nil, fmt.Errorf("failed to open term dictionary: %w", err)
	}
	defer dict.Close()

	terms := make(map[string]int)
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read term dictionary: %w", err)
		}
		if entry == nil {
			return terms, nil
		}
		terms[entry.Term] = int(entry.Count)
	}
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
