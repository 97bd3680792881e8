// Package config provides configuration loading and structs for kura.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port" validate:"gte=1,lte=65535"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" validate:"gte=0"`
}

// StorageConfig holds paths for the database and indices.
type StorageConfig struct {
	DataDir          string `yaml:"data_dir"`
	DatabasePath     string `yaml:"database_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
	VectorSnapshot   string `yaml:"vector_snapshot"`
}

// ChunkingConfig holds chunking and metadata settings. ChunkSize and
// ChunkOverlap are measured in Tokenizer units.
type ChunkingConfig struct {
	Tokenizer    string `yaml:"tokenizer" validate:"oneof=tiktoken words chars"`
	Encoding     string `yaml:"encoding"`
	ChunkSize    int    `yaml:"chunk_size" validate:"gte=1"`
	ChunkOverlap int    `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	AuthorWindow int    `yaml:"author_window" validate:"gte=1"`
	TitleMaxLen  int    `yaml:"title_max_len" validate:"gte=1"`
	MaxAuthors   int    `yaml:"max_authors" validate:"gte=1"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" validate:"oneof=onnx openai hashing"`
	ModelPath  string `yaml:"model_path"`
	VocabPath  string `yaml:"vocab_path"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Dimensions int    `yaml:"dimensions" validate:"gte=1"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size" validate:"gte=0"`
	BatchSize  int    `yaml:"batch_size" validate:"gte=1"`
}

// VectorConfig holds vector database settings.
type VectorConfig struct {
	Provider   string        `yaml:"provider" validate:"oneof=memory qdrant"`
	URL        string        `yaml:"url" validate:"required_if=Provider qdrant"`
	APIKey     string        `yaml:"api_key"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries" validate:"gte=0,lte=10"`
}

// LLMConfig holds language model settings.
type LLMConfig struct {
	Provider        string  `yaml:"provider" validate:"oneof=openai none"`
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	APIKey          string  `yaml:"api_key"`
	Temperature     float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	SummaryMaxChars int     `yaml:"summary_max_chars" validate:"gte=1"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultLimit         int     `yaml:"default_limit" validate:"gte=1,lte=100"`
	DefaultMinChunkScore float64 `yaml:"default_min_chunk_score" validate:"gte=0,lte=1"`
	DefaultRerankCount   int     `yaml:"default_rerank_count" validate:"gte=1,ltefield=MaxRerankCount"`
	MaxRerankCount       int     `yaml:"max_rerank_count" validate:"gte=1,lte=1000"`
	Suggestions          *bool   `yaml:"suggestions"`
}

// SuggestionsEnabled reports whether empty searches get a corrected query; defaults to true.
func (s *SearchConfig) SuggestionsEnabled() bool {
	return s.Suggestions == nil || *s.Suggestions
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string      `yaml:"directories"`
	Extensions  []string      `yaml:"extensions"`
	Recursive   *bool         `yaml:"recursive"`
	Debounce    time.Duration `yaml:"debounce"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// IngestConfig holds batch ingestion settings.
type IngestConfig struct {
	Workers int `yaml:"workers" validate:"gte=1,lte=64"`
}

var validate = validator.New()

// Load reads the config file at path, loads .env files, applies KURA_
// environment overrides and defaults, expands paths and validates the result.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	configDir := "."
	if path != "" {
		configDir = filepath.Dir(path)
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := loadDotEnv(configDir); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	ApplyDefaults(&cfg)

	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	dataPath := func(p string) string {
		if p == ":memory:" || p == "" {
			return p
		}
		if !filepath.IsAbs(p) && !strings.HasPrefix(p, "./") && !strings.HasPrefix(p, "~") {
			return filepath.Join(cfg.Storage.DataDir, p)
		}
		return expandPath(p, configDir)
	}
	cfg.Storage.DatabasePath = dataPath(cfg.Storage.DatabasePath)
	cfg.Storage.KeywordIndexPath = dataPath(cfg.Storage.KeywordIndexPath)
	cfg.Storage.VectorSnapshot = dataPath(cfg.Storage.VectorSnapshot)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Embedding.VocabPath != "" {
		cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// loadDotEnv loads .env from the config directory and the working directory.
// Variables already set in the environment win.
func loadDotEnv(configDir string) error {
	seen := map[string]bool{}
	for _, dir := range []string{configDir, "."} {
		p, err := filepath.Abs(filepath.Join(dir, ".env"))
		if err != nil || seen[p] {
			continue
		}
		seen[p] = true
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// applyEnv overrides secrets and endpoints from KURA_ variables.
func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.Storage.DataDir, "KURA_DATA_DIR")
	set(&cfg.Vector.URL, "KURA_QDRANT_URL")
	set(&cfg.Vector.APIKey, "KURA_QDRANT_API_KEY")
	set(&cfg.LLM.APIKey, "KURA_OPENAI_API_KEY")
	set(&cfg.LLM.BaseURL, "KURA_OPENAI_BASE_URL")
	set(&cfg.Embedding.APIKey, "KURA_OPENAI_API_KEY")
	set(&cfg.Embedding.BaseURL, "KURA_OPENAI_BASE_URL")
	if v := os.Getenv("KURA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if cfg.Vector.URL != "" && cfg.Vector.Provider == "" {
		cfg.Vector.Provider = "qdrant"
	}
}

// expandPath converts a path to absolute. "~" is the home directory; other
// relative paths are relative to configDir.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
		return path
	}
	if abs, err := filepath.Abs(filepath.Join(configDir, path)); err == nil {
		return abs
	}
	return filepath.Join(configDir, path)
}
