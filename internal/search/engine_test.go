package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kura/internal/embedding"
	"github.com/hyperjump/kura/internal/keyword"
	"github.com/hyperjump/kura/internal/metrics"
	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/storage"
	"github.com/hyperjump/kura/internal/vector"
)

const dims = 384

type fixture struct {
	engine   *Engine
	store    *storage.SQLiteStorage
	vectors  *vector.MemoryStore
	keywords *keyword.BleveIndex
	embedder embedding.Embedder
}

func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	vectors, err := vector.NewMemoryStore(dims, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })
	keywords, err := keyword.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = keywords.Close() })

	f := &fixture{store: store, vectors: vectors, keywords: keywords, embedder: embedding.NewHashingEmbedder(dims)}
	opts = append([]EngineOption{WithKeywordIndex(keywords), WithSuggester(keyword.NewSuggester(keywords))}, opts...)
	f.engine = NewEngine(store, f.embedder, vectors, nil, opts...)
	return f
}

// add stores a source with one chunk per content and indexes its vectors.
// When persist is false only the vectors exist, as after a concurrent delete.
func (f *fixture) add(t *testing.T, id string, persist bool, contents ...string) {
	t.Helper()
	ctx := context.Background()
	src := &models.Source{ID: id, Content: id, Metadata: map[string]string{}}
	for i, c := range contents {
		src.Chunks = append(src.Chunks, &models.Chunk{
			ID: fmt.Sprintf("%s-%d", id, i), SourceID: id, Content: c,
			StartIndex: i * 100, EndIndex: i*100 + len(c), Entities: models.NewEntities(),
		})
	}
	if persist {
		require.NoError(t, f.store.CreateSource(ctx, src))
	}
	vecs, err := f.embedder.EmbedBatch(ctx, contents)
	require.NoError(t, err)
	require.NoError(t, f.vectors.Upsert(ctx, vector.PointsFromChunks(src.Chunks, vecs)))
	require.NoError(t, f.keywords.IndexChunks(ctx, src.Chunks))
}

func testQuery(text string) *models.SearchQuery {
	return &models.SearchQuery{Query: text, Limit: 5, MinChunkScore: 0.3, RerankCount: 20}
}

func TestEngine_Search(t *testing.T) {
	f := newFixture(t)
	f.add(t, "summit", true,
		"global summit berlin schedule",
		"global summit berlin speakers",
		"catering menu for lunch")
	f.add(t, "travel", true, "berlin hotel booking", "train timetable")

	resp, err := f.engine.Search(context.Background(), testQuery("global summit berlin"))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, resp.Total, len(resp.Results))
	assert.Empty(t, resp.Suggestion)

	top := resp.Results[0]
	assert.Equal(t, "summit", top.Source.ID)
	assert.Len(t, top.MatchedChunks, 2)
	assert.InDelta(t, 0.7*top.MaxChunkScore+0.3*top.ChunkCoverage, top.CombinedScore, 1e-9)
	assert.InDelta(t, 2.0/20, top.ChunkCoverage, 1e-9)
	for _, m := range top.MatchedChunks {
		assert.Equal(t, 1.0, m.TermOverlap, "chunk %s", m.Chunk.ID)
		assert.GreaterOrEqual(t, m.Score, 0.3)
	}
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].CombinedScore, resp.Results[i].CombinedScore)
	}
}

func TestEngine_Search_DropsOrphanedPoints(t *testing.T) {
	f := newFixture(t)
	f.add(t, "gone", false, "quarterly revenue report")
	f.add(t, "kept", true, "quarterly revenue report draft")

	resp, err := f.engine.Search(context.Background(), testQuery("quarterly revenue report"))
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "kept", resp.Results[0].Source.ID)
}

func TestEngine_Search_Suggestion(t *testing.T) {
	f := newFixture(t)
	f.add(t, "summit", true, "berlin summit schedule")

	resp, err := f.engine.Search(context.Background(), testQuery("berlni"))
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, "berlin", resp.Suggestion)
}

func TestEngine_Search_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Search(ctx, testQuery("   "))
	assert.True(t, models.IsValidation(err))

	q := testQuery("x")
	q.RerankCount = 500
	_, err = f.engine.Search(ctx, q)
	assert.True(t, models.IsValidation(err), "rerank above the configured ceiling")

	q = testQuery("x")
	q.Limit = 0
	_, err = f.engine.Search(ctx, q)
	assert.True(t, models.IsValidation(err))

	_, err = f.engine.Search(ctx, nil)
	assert.True(t, models.IsValidation(err))
}

func TestEngine_SearchSource(t *testing.T) {
	f := newFixture(t)
	f.add(t, "a", true, "neural network training", "neural network inference", "office party")
	f.add(t, "b", true, "neural network training guide")
	ctx := context.Background()

	q := testQuery("neural network")
	q.Limit = 4
	res, err := f.engine.SearchSource(ctx, "a", q)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Source.ID)
	require.Len(t, res.MatchedChunks, 2)
	for _, m := range res.MatchedChunks {
		assert.Equal(t, "a", m.Chunk.SourceID)
	}
	assert.InDelta(t, 0.5, res.ChunkCoverage, 1e-9)

	q = testQuery("completely unrelated words")
	res, err = f.engine.SearchSource(ctx, "a", q)
	require.NoError(t, err)
	assert.Empty(t, res.MatchedChunks)
	assert.Zero(t, res.MaxChunkScore)
	assert.Zero(t, res.ChunkCoverage)
	assert.Zero(t, res.CombinedScore)

	_, err = f.engine.SearchSource(ctx, "missing", testQuery("neural"))
	assert.True(t, models.IsNotFound(err))
}

type failingEmbedder struct{ embedding.Embedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

func TestEngine_CollaboratorFailure(t *testing.T) {
	m := metrics.New()
	f := newFixture(t, WithMetrics(m))
	f.engine.embedder = failingEmbedder{}

	_, err := f.engine.Search(context.Background(), testQuery("anything"))
	require.Error(t, err)
	assert.True(t, models.IsCollaborator(err))
	var ce *models.CollaboratorError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "embedder", ce.Collaborator)
}

func TestEngine_NewQueryUsesDefaults(t *testing.T) {
	f := newFixture(t)
	q := f.engine.NewQuery("hello")
	assert.Equal(t, models.DefaultLimit, q.Limit)
	assert.Equal(t, models.DefaultMinChunkScore, q.MinChunkScore)
	assert.Equal(t, models.DefaultRerankCount, q.RerankCount)
	assert.NoError(t, q.Validate())
}
