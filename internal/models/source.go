// Package models defines core data structures for sources, chunks, queries, and search results.
package models

import "time"

// Metadata keys derived during preprocessing.
const (
	MetaTitle        = "title"
	MetaAuthor       = "author"
	MetaCreationDate = "creation_date"
	MetaFilename     = "filename"
)

// Source is the unit of ingested content. It exclusively owns its Chunks.
type Source struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata"`
	Chunks    []*Chunk          `json:"chunks,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Title returns the derived title, falling back to the filename.
func (s *Source) Title() string {
	if t := s.Metadata[MetaTitle]; t != "" {
		return t
	}
	return s.Metadata[MetaFilename]
}

// Chunk is a contiguous substring of a Source's normalized content.
// StartIndex and EndIndex are character (rune) offsets into Source.Content.
type Chunk struct {
	ID              string    `json:"id"`
	SourceID        string    `json:"source_id"`
	Content         string    `json:"content"`
	StartIndex      int       `json:"start_index"`
	EndIndex        int       `json:"end_index"`
	SectionTitle    string    `json:"section_title,omitempty"`
	PageNumber      int       `json:"page_number,omitempty"`
	PreviousChunkID string    `json:"previous_chunk_id,omitempty"`
	NextChunkID     string    `json:"next_chunk_id,omitempty"`
	Entities        Entities  `json:"entities"`
	CreatedAt       time.Time `json:"created_at"`
}

// SourceInput is the input for ingesting raw text.
type SourceInput struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Filename string            `json:"filename,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SourcePage is one page of a source listing.
type SourcePage struct {
	Sources []*Source `json:"sources"`
	Offset  int       `json:"offset"`
	Limit   int       `json:"limit"`
	Total   int       `json:"total"`
}
