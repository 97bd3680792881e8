// Package search runs retrieval over the vector database: cross-source search
// ranked by source, and single-source search used to ground answers.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/config"
	"github.com/hyperjump/kura/internal/embedding"
	"github.com/hyperjump/kura/internal/keyword"
	"github.com/hyperjump/kura/internal/metrics"
	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/ranking"
	"github.com/hyperjump/kura/internal/vector"
)

// Engine answers search queries.
type Engine struct {
	sources   ranking.SourceLookup
	embedder  embedding.Embedder
	vectors   vector.Store
	keywords  keyword.Index
	suggester *keyword.Suggester
	ranker    *ranking.Ranker
	config    *config.SearchConfig
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithKeywordIndex attaches query-term overlap scores from idx to matches.
func WithKeywordIndex(idx keyword.Index) EngineOption {
	return func(e *Engine) { e.keywords = idx }
}

// WithSuggester offers a corrected query when a search finds nothing.
func WithSuggester(s *keyword.Suggester) EngineOption {
	return func(e *Engine) { e.suggester = s }
}

// WithRanker replaces the default ranker.
func WithRanker(r *ranking.Ranker) EngineOption {
	return func(e *Engine) { e.ranker = r }
}

// WithMetrics records search latency and collaborator failures.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine. A nil cfg uses the default query settings.
func NewEngine(sources ranking.SourceLookup, embedder embedding.Embedder, vectors vector.Store, cfg *config.SearchConfig, opts ...EngineOption) *Engine {
	if cfg == nil {
		var c config.Config
		config.ApplyDefaults(&c)
		cfg = &c.Search
	}
	e := &Engine{
		sources:  sources,
		embedder: embedder,
		vectors:  vectors,
		ranker:   ranking.NewRanker(nil),
		config:   cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search returns sources ranked by combined score, at most q.Limit of them.
func (e *Engine) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := e.validate(q); err != nil {
		return nil, err
	}

	hits, err := e.nearest(ctx, q.Query, vector.SearchRequest{Limit: q.RerankCount, MinScore: q.MinChunkScore})
	if err != nil {
		return nil, err
	}
	results, err := e.ranker.RankSources(ctx, toMatches(hits), q, e.sources)
	if err != nil {
		return nil, fmt.Errorf("failed to rank sources: %w", err)
	}
	e.attachOverlap(ctx, q.Query, results...)

	resp := &models.SearchResponse{
		Results: results,
		Total:   len(results),
		Query:   q.Query,
	}
	if len(results) == 0 {
		resp.Suggestion = e.suggest(q.Query)
	}
	elapsed := time.Since(start)
	resp.QueryTime = elapsed.Milliseconds()
	e.metrics.SearchObserved(metrics.KindCross, elapsed)
	e.logger.Debug("search",
		zap.String("query", q.Query),
		zap.Int("hits", len(hits)),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", elapsed))
	return resp, nil
}

// SearchSource searches the chunks of one source. The result may have no
// matched chunks, which callers treat as no relevant content.
func (e *Engine) SearchSource(ctx context.Context, sourceID string, q *models.SearchQuery) (*models.SearchResult, error) {
	start := time.Now()
	if err := e.validate(q); err != nil {
		return nil, err
	}
	src, err := e.sources.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	hits, err := e.nearest(ctx, q.Query, vector.SearchRequest{
		Limit:    q.Limit,
		MinScore: q.MinChunkScore,
		Filter:   vector.BySource(sourceID),
	})
	if err != nil {
		return nil, err
	}
	result := e.ranker.ScoreSource(src, toMatches(hits), q)
	e.attachOverlap(ctx, q.Query, result)

	e.metrics.SearchObserved(metrics.KindSource, time.Since(start))
	return result, nil
}

// nearest embeds text and runs req against the vector database.
func (e *Engine) nearest(ctx context.Context, text string, req vector.SearchRequest) ([]vector.Hit, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		err = models.Collaborator("embedder", "embed query", err)
		e.metrics.CollaboratorFailed(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	req.Vector = vec
	hits, err := e.vectors.Search(ctx, req)
	if err != nil {
		err = models.Collaborator("vector_db", "search", err)
		e.metrics.CollaboratorFailed(err)
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}
	return hits, nil
}

func toMatches(hits []vector.Hit) []*models.ChunkMatch {
	matches := make([]*models.ChunkMatch, len(hits))
	for i, h := range hits {
		matches[i] = &models.ChunkMatch{Chunk: h.Payload.Chunk(), Score: h.Score}
	}
	return matches
}

// attachOverlap sets TermOverlap on every matched chunk. Overlap is auxiliary,
// so a keyword index failure is logged and leaves the scores at zero.
func (e *Engine) attachOverlap(ctx context.Context, query string, results ...*models.SearchResult) {
	if e.keywords == nil {
		return
	}
	var ids []string
	for _, r := range results {
		for _, m := range r.MatchedChunks {
			ids = append(ids, m.Chunk.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	overlap, err := e.keywords.Overlap(ctx, query, ids)
	if err != nil {
		e.logger.Warn("keyword overlap failed", zap.Error(err))
		return
	}
	for _, r := range results {
		for _, m := range r.MatchedChunks {
			m.TermOverlap = overlap[m.Chunk.ID]
		}
	}
}

func (e *Engine) suggest(query string) string {
	if e.suggester == nil || !e.config.SuggestionsEnabled() {
		return ""
	}
	s, ok, err := e.suggester.Suggest(query)
	if err != nil {
		e.logger.Warn("query suggestion failed", zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return s
}
