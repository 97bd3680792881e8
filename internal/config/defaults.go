package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 90 * time.Second
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "~/.kura"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "kura.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "keyword.bleve"
	}
	if cfg.Storage.VectorSnapshot == "" {
		cfg.Storage.VectorSnapshot = "vectors.gob"
	}

	if cfg.Chunking.Tokenizer == "" {
		cfg.Chunking.Tokenizer = "tiktoken"
	}
	if cfg.Chunking.Encoding == "" {
		cfg.Chunking.Encoding = "cl100k_base"
	}
	// Character budgets approximate the token budgets.
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 400
		if cfg.Chunking.Tokenizer == "chars" {
			cfg.Chunking.ChunkSize = 2000
		}
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 50
		if cfg.Chunking.Tokenizer == "chars" {
			cfg.Chunking.ChunkOverlap = 250
		}
	}
	if cfg.Chunking.AuthorWindow == 0 {
		cfg.Chunking.AuthorWindow = 5000
	}
	if cfg.Chunking.TitleMaxLen == 0 {
		cfg.Chunking.TitleMaxLen = 100
	}
	if cfg.Chunking.MaxAuthors == 0 {
		cfg.Chunking.MaxAuthors = 2
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hashing"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}

	if cfg.Vector.Provider == "" {
		cfg.Vector.Provider = "memory"
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "chunks"
	}
	if cfg.Vector.Timeout == 0 {
		cfg.Vector.Timeout = 10 * time.Second
	}
	if cfg.Vector.Retries == 0 {
		cfg.Vector.Retries = 3
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "none"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.SummaryMaxChars == 0 {
		cfg.LLM.SummaryMaxChars = 12000
	}

	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.DefaultMinChunkScore == 0 {
		cfg.Search.DefaultMinChunkScore = 0.7
	}
	if cfg.Search.DefaultRerankCount == 0 {
		cfg.Search.DefaultRerankCount = 20
	}
	if cfg.Search.MaxRerankCount == 0 {
		cfg.Search.MaxRerankCount = 200
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}

	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
}
