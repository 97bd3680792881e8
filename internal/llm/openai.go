package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIConfig configures an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	// Retries is the number of extra attempts after a failed call.
	Retries int
}

// OpenAIGenerator implements Generator through langchaingo.
type OpenAIGenerator struct {
	model       llms.Model
	temperature float64
	retries     uint64
	backoff     time.Duration
}

// NewOpenAIGenerator creates a generator for cfg.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	opts := []openai.Option{openai.WithToken(cfg.APIKey)}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return newGenerator(client, cfg), nil
}

func newGenerator(model llms.Model, cfg OpenAIConfig) *OpenAIGenerator {
	retries := 0
	if cfg.Retries > 0 {
		retries = cfg.Retries
	}
	return &OpenAIGenerator{
		model:       model,
		temperature: cfg.Temperature,
		retries:     uint64(retries),
		backoff:     500 * time.Millisecond,
	}
}

// Generate sends a system and a human message and returns the first choice.
func (g *OpenAIGenerator) Generate(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	callOpts := []llms.CallOption{llms.WithTemperature(g.temperature)}
	if jsonMode {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	var out string
	backoff := retry.WithMaxRetries(g.retries, retry.NewExponential(g.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := g.model.GenerateContent(ctx, messages, callOpts...)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyResponse
		}
		out = resp.Choices[0].Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
