package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeQdrant records requests and answers the subset of the REST API the store uses.
type fakeQdrant struct {
	mu        sync.Mutex
	created   bool
	requests  []string
	bodies    map[string]map[string]any
	failFirst int
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.Method + " " + r.URL.Path
	f.requests = append(f.requests, key)
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	if f.bodies == nil {
		f.bodies = make(map[string]map[string]any)
	}
	f.bodies[key] = body

	if f.failFirst > 0 {
		f.failFirst--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if r.Header.Get("api-key") != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	reply := func(result any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "result": result})
	}
	switch key {
	case "GET /collections/chunks":
		if !f.created {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":{"error":"not found"}}`))
			return
		}
		reply(map[string]any{"status": "green"})
	case "PUT /collections/chunks":
		f.created = true
		reply(true)
	case "PUT /collections/chunks/index", "PUT /collections/chunks/points", "POST /collections/chunks/points/delete":
		reply(map[string]any{"status": "completed"})
	case "POST /collections/chunks/points/search":
		reply([]map[string]any{
			{"id": "c1", "score": 0.91, "payload": map[string]any{"chunk_id": "c1", "source_id": "s1", "content": "alpha", "start_index": 0, "end_index": 5}},
			{"id": 7, "score": 0.75, "payload": map[string]any{"chunk_id": "c7", "source_id": "s1", "content": "beta"}},
		})
	case "POST /collections/chunks/points/scroll":
		if body["offset"] == nil {
			reply(map[string]any{"points": []map[string]any{{"id": "c1", "payload": map[string]any{"source_id": "s1"}}}, "next_page_offset": "c2"})
			return
		}
		reply(map[string]any{"points": []map[string]any{{"id": "c2", "payload": map[string]any{"source_id": "s2"}}}, "next_page_offset": nil})
	case "POST /collections/chunks/points/count":
		reply(map[string]any{"count": 42})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestQdrant(t *testing.T, f *fakeQdrant) *QdrantStore {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	s, err := NewQdrantStore(QdrantConfig{URL: srv.URL + "/", APIKey: "secret", Dimensions: 2, Retries: 2}, WithBackoff(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestQdrantStore_EnsureCollectionCreates(t *testing.T) {
	f := &fakeQdrant{}
	s := newTestQdrant(t, f)
	if err := s.EnsureCollection(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"GET /collections/chunks", "PUT /collections/chunks", "PUT /collections/chunks/index"}
	if strings.Join(f.requests, ",") != strings.Join(want, ",") {
		t.Errorf("requests = %v", f.requests)
	}
	vectors := f.bodies["PUT /collections/chunks"]["vectors"].(map[string]any)
	if vectors["size"].(float64) != 2 || vectors["distance"] != "Cosine" {
		t.Errorf("vectors config = %v", vectors)
	}

	f.requests = nil
	if err := s.EnsureCollection(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.requests) != 1 {
		t.Errorf("existing collection should need one request, got %v", f.requests)
	}
}

func TestQdrantStore_SearchSendsFilterAndThreshold(t *testing.T) {
	f := &fakeQdrant{}
	s := newTestQdrant(t, f)
	hits, err := s.Search(context.Background(), SearchRequest{
		Vector: []float32{1, 0}, Limit: 5, MinScore: 0.7, Filter: BySource("s1"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].ID != "c1" || hits[0].Payload.Content != "alpha" || hits[0].Payload.EndIndex != 5 {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[1].ID != "7" {
		t.Errorf("numeric id rendered as %q", hits[1].ID)
	}
	body := f.bodies["POST /collections/chunks/points/search"]
	if body["score_threshold"].(float64) != 0.7 || body["limit"].(float64) != 5 {
		t.Errorf("search body = %v", body)
	}
	must := body["filter"].(map[string]any)["must"].([]any)
	cond := must[0].(map[string]any)
	if cond["key"] != "source_id" || cond["match"].(map[string]any)["value"] != "s1" {
		t.Errorf("filter = %v", must)
	}
}

func TestQdrantStore_UpsertDeleteScrollCount(t *testing.T) {
	f := &fakeQdrant{}
	s := newTestQdrant(t, f)
	ctx := context.Background()

	if err := s.Upsert(ctx, []Point{point("c1", "s1", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	points := f.bodies["PUT /collections/chunks/points"]["points"].([]any)
	payload := points[0].(map[string]any)["payload"].(map[string]any)
	if payload["source_id"] != "s1" || payload["chunk_id"] != "c1" {
		t.Errorf("payload = %v", payload)
	}
	if err := s.Upsert(ctx, []Point{point("bad", "s1", 1)}); err == nil {
		t.Error("expected dimension error")
	}

	if err := s.Delete(ctx, Selector{Filter: BySource("s1")}); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.bodies["POST /collections/chunks/points/delete"]["filter"]; !ok {
		t.Error("delete by filter should send a filter")
	}

	page, err := s.Scroll(ctx, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Points) != 1 || page.NextOffset != "c2" {
		t.Errorf("page = %+v", page)
	}
	page, err = s.Scroll(ctx, 1, page.NextOffset)
	if err != nil {
		t.Fatal(err)
	}
	if page.NextOffset != "" || page.Points[0].Payload.SourceID != "s2" {
		t.Errorf("last page = %+v", page)
	}

	n, err := s.Count(ctx)
	if err != nil || n != 42 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestQdrantStore_RetriesServerErrors(t *testing.T) {
	f := &fakeQdrant{failFirst: 2}
	s := newTestQdrant(t, f)
	if _, err := s.Count(context.Background()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(f.requests) != 3 {
		t.Errorf("requests = %d, want 3", len(f.requests))
	}
}

func TestQdrantStore_GivesUpAfterRetries(t *testing.T) {
	f := &fakeQdrant{failFirst: 10}
	s := newTestQdrant(t, f)
	if _, err := s.Count(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(f.requests) != 3 {
		t.Errorf("requests = %d, want 3", len(f.requests))
	}
}

func TestQdrantStore_ClientErrorsAreNotRetried(t *testing.T) {
	f := &fakeQdrant{}
	srv := httptest.NewServer(f)
	defer srv.Close()
	s, _ := NewQdrantStore(QdrantConfig{URL: srv.URL, APIKey: "wrong", Dimensions: 2, Retries: 3}, WithBackoff(time.Millisecond))
	if _, err := s.Count(context.Background()); err == nil {
		t.Fatal("expected unauthorized error")
	}
	if len(f.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(f.requests))
	}
}

func TestNewStore_Providers(t *testing.T) {
	st, err := NewStore(context.Background(), Options{Provider: "memory", Dimensions: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*MemoryStore); !ok {
		t.Errorf("got %T", st)
	}
	if _, err := NewStore(context.Background(), Options{Provider: "faiss", Dimensions: 4}, nil); err == nil {
		t.Error("expected unknown provider error")
	}
	if _, err := NewQdrantStore(QdrantConfig{Dimensions: 2}); err == nil {
		t.Error("expected missing url error")
	}
}
