package vector

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/hyperjump/kura/pkg/utils"
)

// MemoryStore is an in-process Store using brute-force cosine similarity.
// Points keep insertion order so scrolling is stable. It can be snapshotted
// to disk with Save and restored with Load.
type MemoryStore struct {
	dimensions int
	path       string
	order      []string
	points     map[string]Point
	mu         sync.RWMutex
}

// NewMemoryStore creates an empty store. When path is non-empty, Close saves
// a snapshot there and an existing snapshot is loaded immediately.
func NewMemoryStore(dimensions int, path string) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	m := &MemoryStore{
		dimensions: dimensions,
		path:       path,
		points:     make(map[string]Point),
	}
	if err := m.Load(path); err != nil {
		return nil, err
	}
	return m, nil
}

// EnsureCollection is a no-op; the store holds a single collection.
func (m *MemoryStore) EnsureCollection(ctx context.Context) error { return nil }

// Upsert inserts points or replaces points with the same id.
func (m *MemoryStore) Upsert(ctx context.Context, points []Point) error {
	for _, p := range points {
		if len(p.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", p.ID, len(p.Vector), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		vec := make([]float32, m.dimensions)
		copy(vec, p.Vector)
		p.Vector = vec
		if _, ok := m.points[p.ID]; !ok {
			m.order = append(m.order, p.ID)
		}
		m.points[p.ID] = p
	}
	return nil
}

// Search returns up to req.Limit hits whose cosine similarity is at least
// req.MinScore, best first. Equal scores are ordered by id.
func (m *MemoryStore) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	if len(req.Vector) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(req.Vector), m.dimensions)
	}
	if req.Limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	hits := make([]Hit, 0)
	for _, id := range m.order {
		p := m.points[id]
		if !req.Filter.Matches(p.Payload) {
			continue
		}
		score := utils.Cosine(req.Vector, p.Vector)
		if score < req.MinScore {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: score, Payload: p.Payload})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}
	return hits, nil
}

// Delete removes points selected by id or filter.
func (m *MemoryStore) Delete(ctx context.Context, sel Selector) error {
	ids := make(map[string]bool, len(sel.IDs))
	for _, id := range sel.IDs {
		ids[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]string, 0, len(m.order))
	for _, id := range m.order {
		p := m.points[id]
		if ids[id] || (len(sel.Filter) > 0 && sel.Filter.Matches(p.Payload)) {
			delete(m.points, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return nil
}

// Scroll pages through points in insertion order. offset is the position
// returned by the previous page.
func (m *MemoryStore) Scroll(ctx context.Context, limit int, offset string) (*ScrollPage, error) {
	start := 0
	if offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid scroll offset %q", offset)
		}
		start = n
	}
	if limit <= 0 {
		limit = 100
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	page := &ScrollPage{}
	if start >= len(m.order) {
		return page, nil
	}
	end := start + limit
	if end > len(m.order) {
		end = len(m.order)
	}
	for _, id := range m.order[start:end] {
		page.Points = append(page.Points, m.points[id])
	}
	if end < len(m.order) {
		page.NextOffset = strconv.Itoa(end)
	}
	return page, nil
}

// Count returns the number of stored points.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order), nil
}

type snapshot struct {
	Dimensions int
	Points     []Point
}

// Save writes a snapshot to path. Directory is created if needed.
func (m *MemoryStore) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	snap := snapshot{Dimensions: m.dimensions, Points: make([]Point, 0, len(m.order))}
	for _, id := range m.order {
		snap.Points = append(snap.Points, m.points[id])
	}
	m.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		f.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load replaces the contents with the snapshot at path. A missing file leaves
// the store unchanged.
func (m *MemoryStore) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Dimensions != m.dimensions {
		return fmt.Errorf("dimension mismatch: snapshot has %d, store expects %d", snap.Dimensions, m.dimensions)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = make(map[string]Point, len(snap.Points))
	m.order = m.order[:0]
	for _, p := range snap.Points {
		m.points[p.ID] = p
		m.order = append(m.order, p.ID)
	}
	return nil
}

// Close saves a snapshot when the store was created with a path.
func (m *MemoryStore) Close() error {
	return m.Save(m.path)
}
