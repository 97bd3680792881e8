package vector

import "github.com/hyperjump/kura/internal/models"

// PayloadFromChunk copies chunk fields into a payload.
func PayloadFromChunk(c *models.Chunk) Payload {
	return Payload{
		ChunkID:         c.ID,
		SourceID:        c.SourceID,
		Content:         c.Content,
		StartIndex:      c.StartIndex,
		EndIndex:        c.EndIndex,
		SectionTitle:    c.SectionTitle,
		PageNumber:      c.PageNumber,
		PreviousChunkID: c.PreviousChunkID,
		NextChunkID:     c.NextChunkID,
		Entities:        c.Entities,
	}
}

// Chunk rebuilds the chunk described by the payload.
func (p Payload) Chunk() *models.Chunk {
	ents := p.Entities
	if ents == nil {
		ents = models.NewEntities()
	}
	return &models.Chunk{
		ID:              p.ChunkID,
		SourceID:        p.SourceID,
		Content:         p.Content,
		StartIndex:      p.StartIndex,
		EndIndex:        p.EndIndex,
		SectionTitle:    p.SectionTitle,
		PageNumber:      p.PageNumber,
		PreviousChunkID: p.PreviousChunkID,
		NextChunkID:     p.NextChunkID,
		Entities:        ents,
	}
}

// field returns the string payload field used by filters.
func (p Payload) field(key string) (string, bool) {
	switch key {
	case "source_id":
		return p.SourceID, true
	case "chunk_id":
		return p.ChunkID, true
	case "section_title":
		return p.SectionTitle, true
	default:
		return "", false
	}
}

// Matches reports whether the payload satisfies every condition of f.
func (f Filter) Matches(p Payload) bool {
	for k, want := range f {
		got, ok := p.field(k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// BySource returns a filter selecting one source's points.
func BySource(sourceID string) Filter {
	return Filter{"source_id": sourceID}
}

// PointsFromChunks pairs chunks with their vectors.
func PointsFromChunks(chunks []*models.Chunk, vectors [][]float32) []Point {
	points := make([]Point, len(chunks))
	for i, c := range chunks {
		points[i] = Point{ID: c.ID, Vector: vectors[i], Payload: PayloadFromChunk(c)}
	}
	return points
}
