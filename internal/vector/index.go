// Package vector stores chunk embeddings with their payloads and answers
// nearest-neighbour queries with payload filters and score thresholds.
package vector

import (
	"context"

	"github.com/hyperjump/kura/internal/models"
)

// DefaultCollection is the collection chunk points are stored in.
const DefaultCollection = "chunks"

// Payload is stored alongside each vector. It carries enough of the chunk to
// rebuild it without consulting the source store.
type Payload struct {
	ChunkID         string          `json:"chunk_id"`
	SourceID        string          `json:"source_id"`
	Content         string          `json:"content"`
	StartIndex      int             `json:"start_index"`
	EndIndex        int             `json:"end_index"`
	SectionTitle    string          `json:"section_title,omitempty"`
	PageNumber      int             `json:"page_number,omitempty"`
	PreviousChunkID string          `json:"previous_chunk_id,omitempty"`
	NextChunkID     string          `json:"next_chunk_id,omitempty"`
	Entities        models.Entities `json:"entities,omitempty"`
}

// Point is one stored vector. ID equals the chunk id.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Filter requires payload fields to equal the given values. Supported keys
// are source_id, chunk_id and section_title.
type Filter map[string]string

// SearchRequest is a nearest-neighbour query.
type SearchRequest struct {
	Vector   []float32
	Limit    int
	MinScore float64
	Filter   Filter
}

// Hit is a search result ordered by descending Score.
type Hit struct {
	ID      string
	Score   float64
	Payload Payload
}

// Selector picks points to delete: by ids, by filter, or both.
type Selector struct {
	IDs    []string
	Filter Filter
}

// ScrollPage is one page of a full scan. NextOffset is empty on the last page.
type ScrollPage struct {
	Points     []Point
	NextOffset string
}

// Store is the vector database capability.
type Store interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, req SearchRequest) ([]Hit, error)
	Delete(ctx context.Context, sel Selector) error
	Scroll(ctx context.Context, limit int, offset string) (*ScrollPage, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
