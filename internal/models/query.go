package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Defaults used when a query leaves a field unset.
const (
	DefaultLimit         = 10
	DefaultMinChunkScore = 0.7
	DefaultRerankCount   = 20
	MaxLimit             = 100
	MaxRerankCount       = 1000
)

var validate = validator.New()

// SearchQuery is a retrieval request. RerankCount is the number of top chunk
// matches fetched from the vector database before grouping by source.
type SearchQuery struct {
	Query         string  `json:"query" validate:"required"`
	Limit         int     `json:"limit" validate:"gte=1,lte=100"`
	MinChunkScore float64 `json:"min_chunk_score" validate:"gte=0,lte=1"`
	RerankCount   int     `json:"rerank_count" validate:"gte=1,lte=1000"`
}

// NewSearchQuery returns a query with default limit, threshold and pool size.
func NewSearchQuery(text string) SearchQuery {
	return SearchQuery{
		Query:         text,
		Limit:         DefaultLimit,
		MinChunkScore: DefaultMinChunkScore,
		RerankCount:   DefaultRerankCount,
	}
}

// Validate rejects malformed queries with a *ValidationError. It never mutates q.
func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return &ValidationError{Field: "query", Reason: "cannot be empty"}
	}
	return ValidateStruct(q)
}

// ValidateStruct checks the validate tags of v and reports the first failure
// as a *ValidationError.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return toValidationError(err)
	}
	return nil
}

// toValidationError converts the first validator failure into a ValidationError.
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Reason: err.Error()}
	}
	fe := verrs[0]
	reason := fe.Tag()
	if fe.Param() != "" {
		reason = fmt.Sprintf("must satisfy %s=%s, got %v", fe.Tag(), fe.Param(), fe.Value())
	}
	return &ValidationError{Field: toSnake(fe.Field()), Reason: reason}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
