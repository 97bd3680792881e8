// Package llm generates grounded answers and structured summaries with a
// chat language model.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/models"
)

// ErrEmptyResponse is returned when the model produces no text.
var ErrEmptyResponse = errors.New("empty response from language model")

// Generator produces a completion for a system prompt and one user message.
// In JSON mode the model is asked for a single JSON object.
type Generator interface {
	Generate(ctx context.Context, system, user string, jsonMode bool) (string, error)
}

const answerPrompt = `You are a helpful assistant that answers questions based ONLY on the provided source content.
If the answer cannot be determined from the source content, say so.
Always cite specific parts of the source to support your answers.
Do not make assumptions or add information beyond what is in the source.`

const summaryPrompt = `Analyze the given text and provide:
1. A concise summary
2. Key points (max 5)
3. Extracted entities:
   - Dates and temporal references
   - Names (people, organizations)
   - Action items or tasks
Respond with JSON of this structure:
{
  "summary": "concise summary text",
  "key_points": ["point 1", "point 2"],
  "entities": {
    "dates": ["date 1"],
    "names": ["name 1"],
    "actions": ["action 1"]
  }
}`

// MaxKeyPoints caps the key points kept from a summary.
const MaxKeyPoints = 5

// Client wraps a Generator with the answer and summary prompts.
type Client struct {
	gen    Generator
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client over gen.
func NewClient(gen Generator, opts ...Option) *Client {
	c := &Client{gen: gen, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Answer answers question from sourceContent only.
func (c *Client) Answer(ctx context.Context, sourceContent, question string) (string, error) {
	user := fmt.Sprintf("Source content:\n%s\n\nQuestion: %s", sourceContent, question)
	out, err := c.gen.Generate(ctx, answerPrompt, user, false)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		return "", models.Collaborator("llm", "answer", err)
	}
	return strings.TrimSpace(out), nil
}

type summaryJSON struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Entities  struct {
		Dates   []string `json:"dates"`
		Names   []string `json:"names"`
		Actions []string `json:"actions"`
	} `json:"entities"`
}

// Summarize asks for a JSON summary of content. Missing fields come back empty.
func (c *Client) Summarize(ctx context.Context, sourceID, content string) (*models.Summary, error) {
	out, err := c.gen.Generate(ctx, summaryPrompt, content, true)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		return nil, models.Collaborator("llm", "summarize", err)
	}

	var parsed summaryJSON
	if err := json.Unmarshal([]byte(extractJSON(out)), &parsed); err != nil {
		c.logger.Debug("unparseable summary", zap.String("source_id", sourceID), zap.String("response", out))
		return nil, models.Collaborator("llm", "summarize", fmt.Errorf("invalid summary JSON: %w", err))
	}
	if len(parsed.KeyPoints) > MaxKeyPoints {
		parsed.KeyPoints = parsed.KeyPoints[:MaxKeyPoints]
	}
	return &models.Summary{
		SourceID:  sourceID,
		Summary:   strings.TrimSpace(parsed.Summary),
		KeyPoints: nonNil(parsed.KeyPoints),
		Entities: models.SummaryEntities{
			Dates:   nonNil(parsed.Entities.Dates),
			Names:   nonNil(parsed.Entities.Names),
			Actions: nonNil(parsed.Entities.Actions),
		},
	}, nil
}

// extractJSON strips a markdown code fence or leading prose around the
// outermost JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
