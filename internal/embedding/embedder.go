// Package embedding provides text embedders (ONNX, OpenAI-compatible and
// feature hashing) and an LRU caching decorator.
package embedding

import "context"

// Embedder produces vector embeddings for text. Every vector returned by one
// Embedder has Dimensions() elements.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// ONNXConfig describes a sentence-transformer model exported to ONNX. The
// model takes input_ids, attention_mask and token_type_ids of shape
// [1, MaxTokens] and returns a pooled [1, Dimensions] tensor named OutputName
// ("output" when empty).
type ONNXConfig struct {
	ModelPath  string
	VocabPath  string
	OutputName string
	Dimensions int
	MaxTokens  int
}
