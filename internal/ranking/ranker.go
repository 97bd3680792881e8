// Package ranking groups chunk matches by source and orders the groups by a
// blend of their best chunk score and how many of the retrieved chunks they own.
package ranking

import (
	"context"
	"sort"

	"github.com/hyperjump/kura/internal/models"
)

// SourceLookup resolves a source id. A missing source is reported with a
// not-found error.
type SourceLookup interface {
	GetSource(ctx context.Context, id string) (*models.Source, error)
}

// Ranker turns vector search matches into SearchResults.
type Ranker struct {
	config *RankingConfig
}

// NewRanker creates a Ranker from a copy of config. A nil config uses
// DefaultRankingConfig.
func NewRanker(config *RankingConfig) *Ranker {
	c := DefaultRankingConfig()
	if config != nil {
		*c = *config
	}
	c.ApplyDefaults()
	return &Ranker{config: c}
}

// Combine blends the best chunk score with chunk coverage.
func (r *Ranker) Combine(maxScore, coverage float64) float64 {
	return r.config.MaxScoreWeight*maxScore + r.config.CoverageWeight*coverage
}

type group struct {
	sourceID string
	matches  []*models.ChunkMatch
}

// RankSources groups matches by source and returns at most q.Limit results by
// combined score. Coverage is measured against q.RerankCount. Groups whose
// source no longer resolves are dropped; other lookup errors are returned.
// Equal scores are ordered by source id.
func (r *Ranker) RankSources(ctx context.Context, matches []*models.ChunkMatch, q *models.SearchQuery, lookup SourceLookup) ([]*models.SearchResult, error) {
	var groups []*group
	byID := make(map[string]*group)
	taken := 0
	for _, m := range matches {
		if taken == q.RerankCount {
			break
		}
		if m == nil || m.Chunk == nil || m.Score < q.MinChunkScore {
			continue
		}
		taken++
		g, ok := byID[m.Chunk.SourceID]
		if !ok {
			g = &group{sourceID: m.Chunk.SourceID}
			byID[g.sourceID] = g
			groups = append(groups, g)
		}
		g.matches = append(g.matches, m)
	}

	results := make([]*models.SearchResult, 0, len(groups))
	for _, g := range groups {
		src, err := lookup.GetSource(ctx, g.sourceID)
		if models.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, r.score(src, g.matches, q.RerankCount))
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].Source.ID < results[j].Source.ID
	})
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// ScoreSource builds the single-source result from matches already restricted
// to src. At most q.Limit matches are kept and coverage is measured against
// q.Limit. No matches yields zero scores and an empty match list.
func (r *Ranker) ScoreSource(src *models.Source, matches []*models.ChunkMatch, q *models.SearchQuery) *models.SearchResult {
	kept := make([]*models.ChunkMatch, 0, min(len(matches), q.Limit))
	for _, m := range matches {
		if len(kept) == q.Limit {
			break
		}
		if m == nil || m.Chunk == nil || m.Score < q.MinChunkScore || m.Chunk.SourceID != src.ID {
			continue
		}
		kept = append(kept, m)
	}
	return r.score(src, kept, q.Limit)
}

func (r *Ranker) score(src *models.Source, matches []*models.ChunkMatch, denominator int) *models.SearchResult {
	maxScore := 0.0
	for _, m := range matches {
		if m.Score > maxScore {
			maxScore = m.Score
		}
	}
	coverage := 0.0
	if denominator > 0 {
		coverage = float64(len(matches)) / float64(denominator)
	}
	return &models.SearchResult{
		Source:        src,
		MatchedChunks: matches,
		MaxChunkScore: maxScore,
		ChunkCoverage: coverage,
		CombinedScore: r.Combine(maxScore, coverage),
	}
}
