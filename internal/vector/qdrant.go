package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// QdrantConfig configures the Qdrant REST store.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimensions int
	Timeout    time.Duration
	// Retries is the number of extra attempts for transport errors, 429 and 5xx responses.
	Retries int
}

// QdrantStore implements Store over Qdrant's REST API.
type QdrantStore struct {
	client     *resty.Client
	collection string
	dimensions int
	retries    uint64
	backoff    time.Duration
	logger     *zap.Logger
}

// QdrantOption configures a QdrantStore.
type QdrantOption func(*QdrantStore)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) QdrantOption {
	return func(s *QdrantStore) { s.logger = l }
}

// WithBackoff sets the base backoff between retries.
func WithBackoff(d time.Duration) QdrantOption {
	return func(s *QdrantStore) {
		if d > 0 {
			s.backoff = d
		}
	}
}

// NewQdrantStore creates a store. It does not contact the server; call EnsureCollection.
func NewQdrantStore(cfg QdrantConfig, opts ...QdrantOption) (*QdrantStore, error) {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		return nil, errors.New("qdrant url is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("api-key", cfg.APIKey)
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	s := &QdrantStore{
		client:     client,
		collection: collection,
		dimensions: cfg.Dimensions,
		retries:    uint64(retries),
		backoff:    200 * time.Millisecond,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type qdrantEnvelope struct {
	Status any             `json:"status"`
	Result json.RawMessage `json:"result"`
}

type qdrantPoint struct {
	ID      any       `json:"id"`
	Vector  []float32 `json:"vector,omitempty"`
	Payload *Payload  `json:"payload,omitempty"`
	Score   float64   `json:"score,omitempty"`
}

type qdrantCondition struct {
	Key   string            `json:"key"`
	Match map[string]string `json:"match"`
}

type qdrantFilter struct {
	Must []qdrantCondition `json:"must"`
}

func toQdrantFilter(f Filter) *qdrantFilter {
	if len(f) == 0 {
		return nil
	}
	qf := &qdrantFilter{}
	for k, v := range f {
		qf.Must = append(qf.Must, qdrantCondition{Key: k, Match: map[string]string{"value": v}})
	}
	return qf
}

func (s *QdrantStore) path(suffix string) string {
	return "/collections/" + s.collection + suffix
}

// do sends one request, retrying transport errors, 429 and 5xx with
// exponential backoff. A 404 is returned as errNotFound.
func (s *QdrantStore) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var out json.RawMessage
	b := retry.WithMaxRetries(s.retries, retry.NewExponential(s.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req := s.client.R().SetContext(ctx)
		if body != nil {
			req.SetBody(body)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			s.logger.Debug("qdrant request failed", zap.String("path", path), zap.Error(err))
			return retry.RetryableError(err)
		}
		code := resp.StatusCode()
		switch {
		case code == http.StatusNotFound:
			return errNotFound
		case code == http.StatusTooManyRequests || code >= 500:
			return retry.RetryableError(fmt.Errorf("qdrant %s %s: status %d: %s", method, path, code, resp.String()))
		case code >= 400:
			return fmt.Errorf("qdrant %s %s: status %d: %s", method, path, code, resp.String())
		}
		var env qdrantEnvelope
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			return fmt.Errorf("decode qdrant response: %w", err)
		}
		out = env.Result
		return nil
	})
	return out, err
}

var errNotFound = errors.New("qdrant: not found")

// EnsureCollection creates the collection with cosine distance when it does
// not exist, and indexes source_id for filtered search and deletion.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodGet, s.path(""), nil)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errNotFound) {
		return fmt.Errorf("failed to get collection %s: %w", s.collection, err)
	}
	body := map[string]any{
		"vectors": map[string]any{"size": s.dimensions, "distance": "Cosine"},
	}
	if _, err := s.do(ctx, http.MethodPut, s.path(""), body); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}
	index := map[string]any{"field_name": "source_id", "field_schema": "keyword"}
	if _, err := s.do(ctx, http.MethodPut, s.path("/index?wait=true"), index); err != nil {
		return fmt.Errorf("failed to index source_id: %w", err)
	}
	s.logger.Info("qdrant collection created", zap.String("collection", s.collection), zap.Int("dimensions", s.dimensions))
	return nil
}

// Upsert writes points and waits for them to be applied.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	qp := make([]qdrantPoint, len(points))
	for i := range points {
		if len(points[i].Vector) != s.dimensions {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", points[i].ID, len(points[i].Vector), s.dimensions)
		}
		qp[i] = qdrantPoint{ID: points[i].ID, Vector: points[i].Vector, Payload: &points[i].Payload}
	}
	if _, err := s.do(ctx, http.MethodPut, s.path("/points?wait=true"), map[string]any{"points": qp}); err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search runs a filtered nearest-neighbour query with a score threshold.
func (s *QdrantStore) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	if req.Limit <= 0 {
		return nil, nil
	}
	body := map[string]any{
		"vector":          req.Vector,
		"limit":           req.Limit,
		"with_payload":    true,
		"score_threshold": req.MinScore,
	}
	if f := toQdrantFilter(req.Filter); f != nil {
		body["filter"] = f
	}
	raw, err := s.do(ctx, http.MethodPost, s.path("/points/search"), body)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}
	var points []qdrantPoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		h := Hit{ID: pointID(p.ID), Score: p.Score}
		if p.Payload != nil {
			h.Payload = *p.Payload
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// Delete removes points by id and by filter.
func (s *QdrantStore) Delete(ctx context.Context, sel Selector) error {
	if len(sel.IDs) > 0 {
		if _, err := s.do(ctx, http.MethodPost, s.path("/points/delete?wait=true"), map[string]any{"points": sel.IDs}); err != nil {
			return fmt.Errorf("failed to delete points by id: %w", err)
		}
	}
	if f := toQdrantFilter(sel.Filter); f != nil {
		if _, err := s.do(ctx, http.MethodPost, s.path("/points/delete?wait=true"), map[string]any{"filter": f}); err != nil {
			return fmt.Errorf("failed to delete points by filter: %w", err)
		}
	}
	return nil
}

// Scroll pages through all points with their payloads and vectors.
func (s *QdrantStore) Scroll(ctx context.Context, limit int, offset string) (*ScrollPage, error) {
	if limit <= 0 {
		limit = 100
	}
	body := map[string]any{"limit": limit, "with_payload": true, "with_vector": true}
	if offset != "" {
		body["offset"] = offset
	}
	raw, err := s.do(ctx, http.MethodPost, s.path("/points/scroll"), body)
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}
	var res struct {
		Points     []qdrantPoint `json:"points"`
		NextOffset any           `json:"next_page_offset"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode scroll result: %w", err)
	}
	page := &ScrollPage{NextOffset: pointID(res.NextOffset)}
	for _, p := range res.Points {
		pt := Point{ID: pointID(p.ID), Vector: p.Vector}
		if p.Payload != nil {
			pt.Payload = *p.Payload
		}
		page.Points = append(page.Points, pt)
	}
	return page, nil
}

// Count returns the exact number of points.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	raw, err := s.do(ctx, http.MethodPost, s.path("/points/count"), map[string]any{"exact": true})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	var res struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return 0, fmt.Errorf("decode count result: %w", err)
	}
	return res.Count, nil
}

// Close is a no-op.
func (s *QdrantStore) Close() error { return nil }

// pointID renders a Qdrant id, which is either a UUID string or an integer.
func pointID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}
