//go:build !cgo
// +build !cgo

package embedding

import (
	"errors"
)

// ErrONNXUnavailable is returned when the binary was built without cgo.
var ErrONNXUnavailable = errors.New("onnx embedder requires cgo and the onnxruntime shared library")

// ONNXEmbedder is unavailable without cgo.
type ONNXEmbedder struct{ Embedder }

// NewONNXEmbedder always fails without cgo.
func NewONNXEmbedder(ONNXConfig) (*ONNXEmbedder, error) {
	return nil, ErrONNXUnavailable
}
