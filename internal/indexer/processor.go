package indexer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/nlp"
	"go.uber.org/zap"
)

// SourceProcessor normalizes raw text, derives metadata, chunks the result and
// annotates every chunk with entities.
type SourceProcessor struct {
	tagger    nlp.EntityTagger
	dates     nlp.DateNormalizer
	chunker   *TextChunker
	extractor *EntityExtractor
	metadata  MetadataConfig
	logger    *zap.Logger
}

// ProcessorOption configures a SourceProcessor.
type ProcessorOption func(*SourceProcessor)

// WithProcessorLogger sets the logger.
func WithProcessorLogger(l *zap.Logger) ProcessorOption {
	return func(p *SourceProcessor) { p.logger = l }
}

// WithMetadataConfig overrides metadata extraction bounds.
func WithMetadataConfig(cfg MetadataConfig) ProcessorOption {
	return func(p *SourceProcessor) { p.metadata = cfg }
}

// NewSourceProcessor creates a processor from its collaborators.
func NewSourceProcessor(tagger nlp.EntityTagger, dates nlp.DateNormalizer, chunker *TextChunker, opts ...ProcessorOption) *SourceProcessor {
	p := &SourceProcessor{
		tagger:    tagger,
		dates:     dates,
		chunker:   chunker,
		extractor: NewEntityExtractor(tagger, dates),
		metadata:  DefaultMetadataConfig(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process builds a fully populated Source from raw text. filename may be empty.
// Tagger or tokenizer failures abort processing and no Source is returned.
func (p *SourceProcessor) Process(raw, filename string) (*models.Source, error) {
	return p.ProcessWithID(uuid.New().String(), raw, filename)
}

// ProcessWithID is Process with a caller-chosen source id.
func (p *SourceProcessor) ProcessWithID(id, raw, filename string) (*models.Source, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &models.ValidationError{Field: "text", Reason: "cannot be empty"}
	}
	if id == "" {
		id = uuid.New().String()
	}

	content := Normalize(raw)
	head := headOf(content, p.metadata.Window)
	analysis, err := p.tagger.Analyze(head)
	if err != nil {
		return nil, fmt.Errorf("failed to extract metadata for source %s: %w",
			id, models.Collaborator("tagger", "analyze", err))
	}
	meta := extractMetadata(analysis, head, p.dates, p.metadata)
	if filename != "" {
		meta[models.MetaFilename] = filename
	}

	now := time.Now().UTC()
	src := &models.Source{
		ID:        id,
		Content:   content,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := p.chunker.CreateChunks(src.ID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk source %s: %w", id, err)
	}
	for _, ch := range res.Chunks {
		ents, err := p.extractor.Extract(ch.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to extract entities for source %s chunk %s: %w", id, ch.ID, err)
		}
		ch.Entities = ents
	}
	src.Chunks = res.Chunks

	p.logger.Debug("source processed",
		zap.String("source_id", src.ID),
		zap.Int("chunks", len(src.Chunks)),
		zap.Int("skipped", res.Skipped))
	return src, nil
}

// Extractor returns the entity extractor used for chunks.
func (p *SourceProcessor) Extractor() *EntityExtractor { return p.extractor }
