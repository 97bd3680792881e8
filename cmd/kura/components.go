package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/assistant"
	"github.com/hyperjump/kura/internal/config"
	"github.com/hyperjump/kura/internal/embedding"
	"github.com/hyperjump/kura/internal/indexer"
	"github.com/hyperjump/kura/internal/keyword"
	"github.com/hyperjump/kura/internal/llm"
	"github.com/hyperjump/kura/internal/metrics"
	"github.com/hyperjump/kura/internal/nlp"
	"github.com/hyperjump/kura/internal/search"
	"github.com/hyperjump/kura/internal/storage"
	"github.com/hyperjump/kura/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Storage   storage.Storage
	Embedder  embedding.Embedder
	Vectors   vector.Store
	Keywords  *keyword.BleveIndex
	Engine    *search.Engine
	Indexer   *indexer.Indexer
	Assistant *assistant.Assistant
}

// Close releases components in reverse order of creation. The in-memory
// vector store writes its snapshot here.
func (c *Components) Close() {
	if c.Keywords != nil {
		if err := c.Keywords.Close(); err != nil {
			c.Logger.Warn("failed to close keyword index", zap.Error(err))
		}
	}
	if c.Vectors != nil {
		if err := c.Vectors.Close(); err != nil {
			c.Logger.Warn("failed to close vector store", zap.Error(err))
		}
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		if err := c.Storage.Close(); err != nil {
			c.Logger.Warn("failed to close storage", zap.Error(err))
		}
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{Config: cfg, Logger: logger, Metrics: metrics.New()}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if dir := cfg.Storage.DataDir; dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	c.Embedder, err = newEmbedder(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}

	c.Vectors, err = vector.NewStore(ctx, vector.Options{
		Provider:     cfg.Vector.Provider,
		Dimensions:   c.Embedder.Dimensions(),
		SnapshotPath: cfg.Storage.VectorSnapshot,
		Qdrant: vector.QdrantConfig{
			URL:        cfg.Vector.URL,
			APIKey:     cfg.Vector.APIKey,
			Collection: cfg.Vector.Collection,
			Timeout:    cfg.Vector.Timeout,
			Retries:    cfg.Vector.Retries,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	logger.Info("vector store initialized",
		zap.String("provider", cfg.Vector.Provider),
		zap.Int("dimensions", c.Embedder.Dimensions()))

	c.Keywords, err = keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	processor, err := newProcessor(cfg, logger, c.Metrics)
	if err != nil {
		return nil, err
	}

	engineOpts := []search.EngineOption{
		search.WithKeywordIndex(c.Keywords),
		search.WithMetrics(c.Metrics),
		search.WithLogger(logger),
	}
	if cfg.Search.SuggestionsEnabled() {
		engineOpts = append(engineOpts, search.WithSuggester(keyword.NewSuggester(c.Keywords)))
	}
	c.Engine = search.NewEngine(store, c.Embedder, c.Vectors, &cfg.Search, engineOpts...)

	c.Indexer = indexer.NewIndexer(store, c.Embedder, c.Vectors, c.Keywords, processor,
		indexer.WithLogger(logger),
		indexer.WithExtensions(cfg.Watch.Extensions),
		indexer.WithBatchSize(cfg.Embedding.BatchSize),
		indexer.WithWorkers(cfg.Ingest.Workers),
		indexer.WithMetrics(c.Metrics),
	)

	client, err := newLLMClient(cfg.LLM, cfg.Vector.Retries, logger)
	if err != nil {
		return nil, err
	}
	c.Assistant = assistant.New(c.Engine, store, client,
		assistant.WithLogger(logger),
		assistant.WithSummaryMaxChars(cfg.LLM.SummaryMaxChars))
	return c, nil
}

func newEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error) {
	var (
		inner embedding.Embedder
		err   error
	)
	switch cfg.Provider {
	case "onnx":
		inner, err = embedding.NewONNXEmbedder(embedding.ONNXConfig{
			ModelPath:  cfg.ModelPath,
			VocabPath:  cfg.VocabPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
	case "openai":
		inner, err = embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
	case "hashing", "":
		logger.Warn("using the hashing embedder; similarity is lexical only")
		inner = embedding.NewHashingEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s embedder: %w", cfg.Provider, err)
	}
	return embedding.NewCachedEmbedder(inner, cfg.CacheSize)
}

func newTokenizer(cfg config.ChunkingConfig) (nlp.Tokenizer, error) {
	switch cfg.Tokenizer {
	case "words":
		return nlp.WordCounter{}, nil
	case "chars":
		return nlp.RuneCounter{}, nil
	default:
		return nlp.NewTiktokenTokenizer(cfg.Encoding)
	}
}

func newProcessor(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*indexer.SourceProcessor, error) {
	tok, err := newTokenizer(cfg.Chunking)
	if err != nil {
		return nil, err
	}
	tagger := nlp.NewProseTagger(nlp.WithLogger(logger))
	chunker := indexer.NewTextChunker(tok, tagger, cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap,
		indexer.WithChunkerLogger(logger),
		indexer.WithSkipFunc(func(string, int) { m.AlignmentSkipped() }))
	return indexer.NewSourceProcessor(tagger, nlp.NewDateNormalizer(time.UTC), chunker,
		indexer.WithProcessorLogger(logger),
		indexer.WithMetadataConfig(indexer.MetadataConfig{
			Window:      cfg.Chunking.AuthorWindow,
			TitleMaxLen: cfg.Chunking.TitleMaxLen,
			MaxAuthors:  cfg.Chunking.MaxAuthors,
		})), nil
}

// newLLMClient returns nil when no language model is configured.
func newLLMClient(cfg config.LLMConfig, retries int, logger *zap.Logger) (*llm.Client, error) {
	if cfg.Provider != "openai" {
		return nil, nil
	}
	gen, err := llm.NewOpenAIGenerator(llm.OpenAIConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Retries:     retries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize language model: %w", err)
	}
	return llm.NewClient(gen, llm.WithLogger(logger)), nil
}
