// Package extract turns uploaded or watched files into plain source text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/kura/internal/models"
)

// Document is the text of a file. Pages is set only for paginated formats
// and holds each page's text in order; Text is the pages joined by a blank line.
type Document struct {
	Text  string
	Pages []string
}

type extractFunc func(content []byte) (*Document, error)

var formats = map[string]extractFunc{
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractExcel,
}

// Extractor extracts text from supported document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether ext (with leading dot) has an extractor.
func Supported(ext string) bool {
	_, ok := formats[strings.ToLower(ext)]
	return ok
}

// Extensions lists the supported extensions in sorted order.
func Extensions() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract reads the file at path and extracts its text.
func (e *Extractor) Extract(path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(ext) {
		return nil, unsupported(ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content in the format named by ext.
// An unknown extension is a validation error.
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Document, error) {
	fn, ok := formats[strings.ToLower(ext)]
	if !ok {
		return nil, unsupported(ext)
	}
	return fn(content)
}

func unsupported(ext string) error {
	if ext == "" {
		ext = "(none)"
	}
	return &models.ValidationError{Field: "file", Reason: fmt.Sprintf("unsupported format %s", ext)}
}
