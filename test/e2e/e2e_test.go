package e2e

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kura/internal/config"
	"github.com/hyperjump/kura/internal/embedding"
	"github.com/hyperjump/kura/internal/fileid"
	"github.com/hyperjump/kura/internal/indexer"
	"github.com/hyperjump/kura/internal/keyword"
	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/nlp"
	"github.com/hyperjump/kura/internal/search"
	"github.com/hyperjump/kura/internal/storage"
	"github.com/hyperjump/kura/internal/vector"
)

const (
	e2eDimensions  = 256
	e2eSearchLimit = 10
	e2eMinScore    = 0.1
)

type pipeline struct {
	indexer *indexer.Indexer
	engine  *search.Engine
	store   *storage.SQLiteStorage
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "kura.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	vectors, err := vector.NewMemoryStore(e2eDimensions, "")
	if err != nil {
		t.Fatal(err)
	}
	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "keyword.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	var cfg config.Config
	config.ApplyDefaults(&cfg)

	tagger := nlp.NewProseTagger()
	chunker := indexer.NewTextChunker(nlp.WordCounter{}, tagger, 64, 8)
	processor := indexer.NewSourceProcessor(tagger, nlp.NewDateNormalizer(nil), chunker)
	embedder := embedding.NewHashingEmbedder(e2eDimensions)

	return &pipeline{
		indexer: indexer.NewIndexer(store, embedder, vectors, kw, processor),
		engine: search.NewEngine(store, embedder, vectors, &cfg.Search,
			search.WithKeywordIndex(kw)),
		store: store,
	}
}

func (p *pipeline) search(t *testing.T, query string) *models.SearchResponse {
	t.Helper()
	q := models.NewSearchQuery(query)
	q.Limit = e2eSearchLimit
	q.MinChunkScore = e2eMinScore
	resp, err := p.engine.Search(context.Background(), &q)
	if err != nil {
		t.Fatalf("search %q: %v", query, err)
	}
	return resp
}

func resultIDs(resp *models.SearchResponse) []string {
	ids := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		ids = append(ids, r.Source.ID)
	}
	return ids
}

func contains(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

func TestE2E_SearchReturnsExpectedSources(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	corpus := BuildCorpus()

	for _, in := range corpus.Inputs() {
		if _, err := p.indexer.Ingest(ctx, in); err != nil {
			t.Fatalf("ingest %s: %v", in.Filename, err)
		}
	}
	n, err := p.store.CountSources(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if int(n) != len(corpus.Documents) {
		t.Fatalf("expected %d sources, got %d", len(corpus.Documents), n)
	}

	for _, tc := range corpus.Cases {
		t.Run(tc.Query, func(t *testing.T) {
			resp := p.search(t, tc.Query)
			ids := resultIDs(resp)
			if !contains(ids, tc.ExpectedID) {
				t.Errorf("query %q: expected %s among %v", tc.Query, tc.ExpectedID, ids)
			}
			for i := 1; i < len(resp.Results); i++ {
				if resp.Results[i].CombinedScore > resp.Results[i-1].CombinedScore {
					t.Errorf("results not ordered by combined score at %d", i)
				}
			}
		})
	}
}

func TestE2E_DeletedSourceLeavesResults(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	corpus := BuildCorpus()
	inputs := corpus.Inputs()[:4]
	for _, in := range inputs {
		if _, err := p.indexer.Ingest(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	tc := corpus.Cases[0]
	if !contains(resultIDs(p.search(t, tc.Query)), tc.ExpectedID) {
		t.Fatalf("query %q should find %s before deletion", tc.Query, tc.ExpectedID)
	}
	if err := p.indexer.Delete(ctx, tc.ExpectedID); err != nil {
		t.Fatal(err)
	}
	if contains(resultIDs(p.search(t, tc.Query)), tc.ExpectedID) {
		t.Errorf("query %q still finds deleted source %s", tc.Query, tc.ExpectedID)
	}
	q := models.NewSearchQuery(tc.Query)
	if _, err := p.engine.SearchSource(ctx, tc.ExpectedID, &q); !models.IsNotFound(err) {
		t.Errorf("SearchSource on deleted source: expected not found, got %v", err)
	}
	if _, err := p.store.GetSource(ctx, tc.ExpectedID); !models.IsNotFound(err) {
		t.Errorf("GetSource on deleted source: expected not found, got %v", err)
	}

	report, err := p.indexer.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Removed != 0 {
		t.Errorf("delete left %d orphan points", report.Removed)
	}
}

// TestE2E_FileIngestionSearch writes the corpus as files of every supported
// type, ingests the directory and runs the query cases against file-derived
// source IDs.
func TestE2E_FileIngestionSearch(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	corpus := BuildCorpus()
	docDir := t.TempDir()

	expected := make(map[string]string)
	for i, d := range corpus.Documents {
		ext := FileExtensions[i%len(FileExtensions)]
		path := filepath.Join(docDir, slug(d.Title)+ext)
		content, err := MinimalFile(ext, d.Text())
		if err != nil {
			t.Fatalf("build %s: %v", path, err)
		}
		if err := os.WriteFile(path, content, 0644); err != nil {
			t.Fatal(err)
		}
		id, err := fileid.ForPath(path)
		if err != nil {
			t.Fatal(err)
		}
		expected[d.ID] = id
	}

	report, err := p.indexer.IngestDirectory(ctx, docDir)
	if err != nil {
		t.Fatalf("ingest directory: %v", err)
	}
	if report.Ingested != len(corpus.Documents) || report.Failed != 0 {
		for _, f := range report.Files {
			if f.Error != "" {
				t.Logf("%s: %s", f.Path, f.Error)
			}
		}
		t.Fatalf("ingested %d, failed %d, want %d ingested", report.Ingested, report.Failed, len(corpus.Documents))
	}

	for _, tc := range corpus.Cases {
		t.Run(tc.Query, func(t *testing.T) {
			want := expected[tc.ExpectedID]
			ids := resultIDs(p.search(t, tc.Query))
			if !contains(ids, want) {
				t.Errorf("query %q: expected %s among %v", tc.Query, want, ids)
			}
		})
	}

	again, err := p.indexer.IngestDirectory(ctx, docDir)
	if err != nil {
		t.Fatal(err)
	}
	if again.Unchanged != len(corpus.Documents) {
		t.Errorf("second pass: %d unchanged, want %d", again.Unchanged, len(corpus.Documents))
	}
}
