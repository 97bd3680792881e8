// Package storage persists sources, their chunks and generated summaries.
// It is the source lookup used to resolve vector search hits.
package storage

import (
	"context"

	"github.com/hyperjump/kura/internal/models"
)

// Storage defines source, chunk and summary persistence. Lookups of a missing
// source return a *models.NotFoundError.
type Storage interface {
	// Source operations
	CreateSource(ctx context.Context, src *models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	ListSources(ctx context.Context, offset, limit int) ([]*models.Source, error)
	DeleteSource(ctx context.Context, id string) error

	// Chunk operations
	GetChunks(ctx context.Context, sourceID string) ([]*models.Chunk, error)
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)

	// Summary operations
	SaveSummary(ctx context.Context, summary *models.Summary) error
	GetSummary(ctx context.Context, sourceID string) (*models.Summary, error)

	// Stats
	CountSources(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
