// Package assistant answers questions about one source and summarizes
// sources with a language model, grounded in retrieved chunks.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/llm"
	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/pkg/utils"
)

// NoRelevantContent is the answer given when no chunk of the source matches.
const NoRelevantContent = "No relevant content was found in this source to answer the question."

// ErrDisabled is returned when no language model is configured.
var ErrDisabled = errors.New("language model is not configured")

// Searcher runs single-source retrieval.
type Searcher interface {
	NewQuery(text string) *models.SearchQuery
	SearchSource(ctx context.Context, sourceID string, q *models.SearchQuery) (*models.SearchResult, error)
}

// SummaryStore reads sources and persists summaries.
type SummaryStore interface {
	GetSource(ctx context.Context, id string) (*models.Source, error)
	SaveSummary(ctx context.Context, summary *models.Summary) error
	GetSummary(ctx context.Context, sourceID string) (*models.Summary, error)
}

// Assistant implements Ask, Summarize and GetSummary.
type Assistant struct {
	searcher        Searcher
	store           SummaryStore
	llm             *llm.Client
	summaryMaxChars int
	logger          *zap.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// WithSummaryMaxChars caps the characters of content sent for summarization.
func WithSummaryMaxChars(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.summaryMaxChars = n
		}
	}
}

// New creates an Assistant. A nil client disables Ask and Summarize calls
// that need the model.
func New(searcher Searcher, store SummaryStore, client *llm.Client, opts ...Option) *Assistant {
	a := &Assistant{
		searcher:        searcher,
		store:           store,
		llm:             client,
		summaryMaxChars: 12000,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask answers question from the best-matching chunks of sourceID. Without
// matching chunks the model is not called and NoRelevantContent is returned.
func (a *Assistant) Ask(ctx context.Context, sourceID, question string) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &models.ValidationError{Field: "question", Reason: "cannot be empty"}
	}
	result, err := a.searcher.SearchSource(ctx, sourceID, a.searcher.NewQuery(question))
	if err != nil {
		return nil, err
	}

	answer := &models.Answer{SourceID: sourceID, Question: question}
	if len(result.MatchedChunks) == 0 {
		answer.Answer = NoRelevantContent
		return answer, nil
	}
	if a.llm == nil {
		return nil, models.Collaborator("llm", "answer", ErrDisabled)
	}

	text, err := a.llm.Answer(ctx, buildContext(result.MatchedChunks), question)
	if err != nil {
		return nil, fmt.Errorf("failed to answer question for source %s: %w", sourceID, err)
	}
	answer.Answer = text
	answer.Grounded = true
	answer.Citations = result.MatchedChunks
	a.logger.Debug("answered",
		zap.String("source_id", sourceID),
		zap.Int("chunks", len(result.MatchedChunks)))
	return answer, nil
}

// buildContext joins matched chunks in textual order, labelled with their
// section titles and pages.
func buildContext(matches []*models.ChunkMatch) string {
	ordered := make([]*models.ChunkMatch, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Chunk.StartIndex < ordered[j].Chunk.StartIndex
	})

	var b strings.Builder
	for i, m := range ordered {
		if i > 0 {
			b.WriteString("\n\n")
		}
		var labels []string
		if m.Chunk.SectionTitle != "" {
			labels = append(labels, "section: "+m.Chunk.SectionTitle)
		}
		if m.Chunk.PageNumber > 0 {
			labels = append(labels, fmt.Sprintf("page %d", m.Chunk.PageNumber))
		}
		if len(labels) > 0 {
			fmt.Fprintf(&b, "[%s]\n", strings.Join(labels, ", "))
		}
		b.WriteString(m.Chunk.Content)
	}
	return b.String()
}

// Summarize generates and stores a summary of sourceID, replacing any
// previous one.
func (a *Assistant) Summarize(ctx context.Context, sourceID string) (*models.Summary, error) {
	src, err := a.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if a.llm == nil {
		return nil, models.Collaborator("llm", "summarize", ErrDisabled)
	}
	content := src.Content
	if title := src.Title(); title != "" {
		content = "Title: " + title + "\n\n" + content
	}
	summary, err := a.llm.Summarize(ctx, sourceID, utils.Truncate(content, a.summaryMaxChars))
	if err != nil {
		return nil, fmt.Errorf("failed to summarize source %s: %w", sourceID, err)
	}
	if err := a.store.SaveSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("failed to save summary for source %s: %w", sourceID, err)
	}
	return summary, nil
}

// GetSummary returns the stored summary. It is NotFound when the source or
// its summary does not exist.
func (a *Assistant) GetSummary(ctx context.Context, sourceID string) (*models.Summary, error) {
	if _, err := a.store.GetSource(ctx, sourceID); err != nil {
		return nil, err
	}
	return a.store.GetSummary(ctx, sourceID)
}
