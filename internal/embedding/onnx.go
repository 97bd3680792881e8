//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/kura/pkg/utils"
)

var onnxInputs = []string{"input_ids", "attention_mask", "token_type_ids"}

// ONNXEmbedder runs a local ONNX model. The session is bound to one set of
// tensors, so Embed calls are serialized.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	tokenizer  Tokenizer
	dimensions int
	maxTokens  int
	// ids, mask and types, in onnxInputs order
	inputs []*ort.Tensor[int64]
	output *ort.Tensor[float32]
	mu     sync.Mutex
}

// NewONNXEmbedder loads the vocabulary and model and allocates the tensors
// the session runs on.
func NewONNXEmbedder(cfg ONNXConfig) (_ *ONNXEmbedder, err error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("onnx: dimensions must be positive")
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}
	tokenizer, err := NewWordPieceTokenizer(cfg.VocabPath)
	if err != nil {
		return nil, err
	}
	e := &ONNXEmbedder{
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
		maxTokens:  cfg.MaxTokens,
	}
	if e.maxTokens <= 2 {
		e.maxTokens = 256
	}
	defer func() {
		if err != nil {
			_ = e.Close()
		}
	}()

	shape := ort.NewShape(1, int64(e.maxTokens))
	for _, name := range onnxInputs {
		t, err := ort.NewEmptyTensor[int64](shape)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s tensor: %w", name, err)
		}
		e.inputs = append(e.inputs, t)
	}
	if e.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.dimensions))); err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	outputName := cfg.OutputName
	if outputName == "" {
		outputName = "output"
	}
	inputs := make([]ort.ArbitraryTensor, len(e.inputs))
	for i, t := range e.inputs {
		inputs[i] = t
	}
	e.session, err = ort.NewAdvancedSession(cfg.ModelPath, onnxInputs, []string{outputName},
		inputs, []ort.ArbitraryTensor{e.output}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", cfg.ModelPath, err)
	}
	return e, nil
}

// Embed runs the model on text and returns the L2-normalized output.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, mask, types := e.tokenizer.Tokenize(text, e.maxTokens)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, errors.New("onnx embedder is closed")
	}
	for i, data := range [][]int64{ids, mask, types} {
		copy(e.inputs[i].GetData(), data)
	}
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	vec := append([]float32(nil), e.output.GetData()[:e.dimensions]...)
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch embeds texts one at a time; the model is exported with batch size 1.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int { return e.dimensions }

// Close destroys the session and its tensors. It is safe to call twice.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	for _, t := range e.inputs {
		_ = t.Destroy()
	}
	e.inputs = nil
	if e.output != nil {
		_ = e.output.Destroy()
		e.output = nil
	}
	return err
}
