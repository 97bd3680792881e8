package models

// ChunkMatch is a chunk returned by a similarity search.
// Score is the vector similarity in [0,1]; TermOverlap is an auxiliary
// lexical overlap score in [0,1] and is zero when not computed.
type ChunkMatch struct {
	Chunk       *Chunk  `json:"chunk"`
	Score       float64 `json:"score"`
	TermOverlap float64 `json:"term_overlap,omitempty"`
}

// SearchResult is a source with its matched chunks and derived scores.
type SearchResult struct {
	Source        *Source       `json:"source"`
	MatchedChunks []*ChunkMatch `json:"matched_chunks"`
	MaxChunkScore float64       `json:"max_chunk_score"`
	ChunkCoverage float64       `json:"chunk_coverage"`
	CombinedScore float64       `json:"combined_score"`
}

// SearchResponse wraps cross-source results for the API.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
	// Suggestion is a corrected query offered when nothing matched.
	Suggestion string `json:"suggestion,omitempty"`
}

// Answer is a grounded answer for one source.
type Answer struct {
	SourceID  string        `json:"source_id"`
	Question  string        `json:"question"`
	Answer    string        `json:"answer"`
	Grounded  bool          `json:"grounded"`
	Citations []*ChunkMatch `json:"citations,omitempty"`
}

// Summary is a generated summary of a source.
type Summary struct {
	SourceID  string          `json:"source_id"`
	Summary   string          `json:"summary"`
	KeyPoints []string        `json:"key_points"`
	Entities  SummaryEntities `json:"entities"`
}

// SummaryEntities are the entity lists reported by summary generation.
type SummaryEntities struct {
	Dates   []string `json:"dates"`
	Names   []string `json:"names"`
	Actions []string `json:"actions"`
}
