package search

import (
	"fmt"

	"github.com/hyperjump/kura/internal/models"
)

// NewQuery returns a query for text using the configured defaults.
func (e *Engine) NewQuery(text string) *models.SearchQuery {
	return &models.SearchQuery{
		Query:         text,
		Limit:         e.config.DefaultLimit,
		MinChunkScore: e.config.DefaultMinChunkScore,
		RerankCount:   e.config.DefaultRerankCount,
	}
}

// validate checks q and the configured rerank ceiling.
func (e *Engine) validate(q *models.SearchQuery) error {
	if q == nil {
		return &models.ValidationError{Field: "query", Reason: "cannot be empty"}
	}
	if err := q.Validate(); err != nil {
		return err
	}
	if limit := e.config.MaxRerankCount; limit > 0 && q.RerankCount > limit {
		return &models.ValidationError{
			Field:  "rerank_count",
			Reason: fmt.Sprintf("must be at most %d, got %d", limit, q.RerankCount),
		}
	}
	return nil
}
