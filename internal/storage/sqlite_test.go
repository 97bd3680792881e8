package storage

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/hyperjump/kura/internal/models"
)

func testSource(id string, starts ...int) *models.Source {
	src := &models.Source{
		ID:       id,
		Content:  "The quick brown fox jumps over the lazy dog.",
		Metadata: map[string]string{models.MetaTitle: "Fox", models.MetaFilename: "fox.txt"},
	}
	for i, start := range starts {
		ents := models.NewEntities()
		ents.Add(models.EntityPerson, "Fox")
		src.Chunks = append(src.Chunks, &models.Chunk{
			ID:           id + "-c" + string(rune('a'+i)),
			SourceID:     id,
			Content:      "chunk",
			StartIndex:   start,
			EndIndex:     start + 5,
			SectionTitle: "Intro",
			PageNumber:   i + 1,
			Entities:     ents,
		})
	}
	for i := 1; i < len(src.Chunks); i++ {
		src.Chunks[i-1].NextChunkID = src.Chunks[i].ID
		src.Chunks[i].PreviousChunkID = src.Chunks[i-1].ID
	}
	return src
}

func TestSQLiteStorage_SourceLifecycle(t *testing.T) {
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "data", "kura.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	src := testSource("s1", 10, 0)
	if err := store.CreateSource(ctx, src); err != nil {
		t.Fatal(err)
	}
	if src.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetSource(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != src.Content || got.Title() != "Fox" {
		t.Errorf("got %+v", got)
	}
	if len(got.Chunks) != 2 || got.Chunks[0].StartIndex != 0 || got.Chunks[1].ID != "s1-ca" {
		t.Errorf("GetSource chunks = %+v", got.Chunks)
	}

	chunks, err := store.GetChunks(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].StartIndex != 0 || chunks[1].StartIndex != 10 {
		t.Errorf("chunks not ordered by start index: %d, %d", chunks[0].StartIndex, chunks[1].StartIndex)
	}
	if !slices.Contains(chunks[0].Entities[models.EntityPerson], "Fox") {
		t.Errorf("entities not round-tripped: %+v", chunks[0].Entities)
	}
	if chunks[0].PageNumber == 0 || chunks[0].SectionTitle != "Intro" {
		t.Errorf("chunk fields lost: %+v", chunks[0])
	}

	one, err := store.GetChunk(ctx, chunks[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if one.SourceID != "s1" {
		t.Errorf("GetChunk source = %q", one.SourceID)
	}

	n, err := store.CountChunks(ctx)
	if err != nil || n != 2 {
		t.Errorf("CountChunks = %d, %v", n, err)
	}

	if err := store.DeleteSource(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetSource(ctx, "s1"); !models.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	chunks, err = store.GetChunks(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("chunks survived delete: %d", len(chunks))
	}
}

func TestSQLiteStorage_NotFound(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if _, err := store.GetSource(ctx, "missing"); !models.IsNotFound(err) {
		t.Errorf("GetSource: expected not found, got %v", err)
	}
	if err := store.DeleteSource(ctx, "missing"); !models.IsNotFound(err) {
		t.Errorf("DeleteSource: expected not found, got %v", err)
	}
	if _, err := store.GetSummary(ctx, "missing"); !models.IsNotFound(err) {
		t.Errorf("GetSummary: expected not found, got %v", err)
	}
	if err := store.SaveSummary(ctx, &models.Summary{SourceID: "missing"}); !models.IsNotFound(err) {
		t.Errorf("SaveSummary: expected not found, got %v", err)
	}
}

func TestSQLiteStorage_DuplicateIDRollsBack(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.CreateSource(ctx, testSource("s1", 0)); err != nil {
		t.Fatal(err)
	}
	// Same source ID; the chunk insert must not leak.
	dup := testSource("s1", 0, 20)
	dup.Chunks[1].ID = "fresh"
	if err := store.CreateSource(ctx, dup); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	if _, err := store.GetChunk(ctx, "fresh"); !models.IsNotFound(err) {
		t.Errorf("chunk from failed insert persisted: %v", err)
	}
}

func TestSQLiteStorage_ListSources(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		src := testSource(id)
		src.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := store.CreateSource(ctx, src); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.ListSources(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Errorf("unexpected first page: %v", ids(list))
	}
	list, err = store.ListSources(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "a" {
		t.Errorf("unexpected second page: %v", ids(list))
	}

	n, err := store.CountSources(ctx)
	if err != nil || n != 3 {
		t.Errorf("CountSources = %d, %v", n, err)
	}
}

func TestSQLiteStorage_Summary(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.CreateSource(ctx, testSource("s1", 0)); err != nil {
		t.Fatal(err)
	}
	first := &models.Summary{SourceID: "s1", Summary: "v1", KeyPoints: []string{"one"}}
	if err := store.SaveSummary(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := &models.Summary{
		SourceID:  "s1",
		Summary:   "v2",
		KeyPoints: []string{"two"},
		Entities:  models.SummaryEntities{Names: []string{"Jane"}},
	}
	if err := store.SaveSummary(ctx, second); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetSummary(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary != "v2" || len(got.Entities.Names) != 1 {
		t.Errorf("summary not replaced: %+v", got)
	}

	if err := store.DeleteSource(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetSummary(ctx, "s1"); !models.IsNotFound(err) {
		t.Errorf("summary survived source delete: %v", err)
	}
}

func ids(sources []*models.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.ID
	}
	return out
}
