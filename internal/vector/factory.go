package vector

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Provider names a Store implementation.
type Provider string

const (
	// ProviderMemory keeps points in process and snapshots them to disk.
	ProviderMemory Provider = "memory"
	// ProviderQdrant talks to a Qdrant server over REST.
	ProviderQdrant Provider = "qdrant"
)

// Options selects and configures a Store.
type Options struct {
	Provider     string
	Dimensions   int
	SnapshotPath string
	Qdrant       QdrantConfig
}

// NewStore creates the configured store and ensures its collection exists.
func NewStore(ctx context.Context, opts Options, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		store Store
		err   error
	)
	switch Provider(opts.Provider) {
	case ProviderMemory, "":
		store, err = NewMemoryStore(opts.Dimensions, opts.SnapshotPath)
	case ProviderQdrant:
		cfg := opts.Qdrant
		cfg.Dimensions = opts.Dimensions
		store, err = NewQdrantStore(cfg, WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown vector provider: %s (supported: memory, qdrant)", opts.Provider)
	}
	if err != nil {
		return nil, err
	}
	if err := store.EnsureCollection(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
