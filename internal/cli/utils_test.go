package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kura/internal/models"
)

func sampleResponse() *models.SearchResponse {
	src := &models.Source{
		ID:       "src-1",
		Metadata: map[string]string{models.MetaTitle: "Tech Conference", "source_path": "/docs/conf.txt"},
	}
	return &models.SearchResponse{
		Query:     "keynote",
		QueryTime: 42,
		Total:     1,
		Results: []*models.SearchResult{{
			Source: src,
			MatchedChunks: []*models.ChunkMatch{
				{Chunk: &models.Chunk{ID: "c1", Content: "John Smith is the keynote speaker.", SectionTitle: "ANNOUNCEMENT", PageNumber: 2}, Score: 0.91},
				{Chunk: &models.Chunk{ID: "c2", Content: "Registration opens at nine."}, Score: 0.75},
			},
			MaxChunkScore: 0.91,
			ChunkCoverage: 0.5,
			CombinedScore: 0.787,
		}},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	response := sampleResponse()
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != "keynote" || decoded.QueryTime != 42 {
		t.Errorf("decoded query=%q query_time=%d", decoded.Query, decoded.QueryTime)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].Source.ID != "src-1" {
		t.Errorf("decoded results: got %+v", decoded.Results)
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatalf("WriteSearchResults(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{
		"Found 1 sources in 42ms", "#1 | Score: 0.7870", "ID: src-1", "Title: Tech Conference",
		"Path: /docs/conf.txt", "[ANNOUNCEMENT] (page 2)", "keynote speaker", "Registration opens",
	} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteSearchResults_suggestion(t *testing.T) {
	response := &models.SearchResponse{Query: "keynot", Suggestion: "keynote"}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputFormat("unknown")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Found 0 sources") || !strings.Contains(buf.String(), "Did you mean: keynote") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteSearchResults_limitsMatches(t *testing.T) {
	response := sampleResponse()
	chunks := response.Results[0].MatchedChunks
	for i := 0; i < 3; i++ {
		chunks = append(chunks, &models.ChunkMatch{Chunk: &models.Chunk{Content: "more"}, Score: 0.7})
	}
	response.Results[0].MatchedChunks = chunks
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "... 2 more") {
		t.Errorf("expected truncated match list:\n%s", buf.String())
	}
}

func TestWriteSources(t *testing.T) {
	page := &models.SourcePage{
		Sources: []*models.Source{
			{ID: "a", Metadata: map[string]string{models.MetaTitle: "First"}, CreatedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
			{ID: "b", Metadata: map[string]string{models.MetaFilename: "b.txt"}},
		},
		Offset: 10,
		Limit:  2,
		Total:  12,
	}
	var buf bytes.Buffer
	if err := WriteSources(&buf, page, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"a  2024-03-01 09:30  First", "b.txt", "Showing 11-12 of 12"} {
		if !strings.Contains(out, sub) {
			t.Errorf("missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteSources(&buf, &models.SourcePage{}, OutputText); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "No sources." {
		t.Errorf("empty page: got %q", buf.String())
	}
}

func TestWriteSource(t *testing.T) {
	src := &models.Source{
		ID:       "s1",
		Metadata: map[string]string{models.MetaTitle: "Notes", models.MetaAuthor: "Jane Doe"},
		Chunks:   []*models.Chunk{{StartIndex: 0, EndIndex: 12, Content: "first  chunk\ntext"}},
	}
	var buf bytes.Buffer
	if err := WriteSource(&buf, src, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Title: Notes", "author: Jane Doe", "Chunks: 1", "0-12  first chunk text"} {
		if !strings.Contains(out, sub) {
			t.Errorf("missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteAnswer(t *testing.T) {
	answer := &models.Answer{
		Question: "who speaks",
		Answer:   "John Smith.",
		Grounded: true,
		Citations: []*models.ChunkMatch{
			{Chunk: &models.Chunk{Content: "John Smith from Google will be the keynote speaker."}, Score: 0.8},
		},
	}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, answer, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "John Smith.\n") || !strings.Contains(out, "Sources:") {
		t.Errorf("got %q", out)
	}

	buf.Reset()
	if err := WriteAnswer(&buf, &models.Answer{Answer: "nothing"}, OutputText); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Sources:") {
		t.Errorf("ungrounded answer should have no sources: %q", buf.String())
	}
}

func TestWriteSummary(t *testing.T) {
	summary := &models.Summary{
		Summary:   "A conference.",
		KeyPoints: []string{"in March"},
		Entities:  models.SummaryEntities{Names: []string{"John Smith"}},
	}
	var buf bytes.Buffer
	if err := WriteSummary(&buf, summary, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"A conference.", "Key points:\n  - in March", "Names:\n  - John Smith"} {
		if !strings.Contains(out, sub) {
			t.Errorf("missing %q:\n%s", sub, out)
		}
	}
	if strings.Contains(out, "Dates:") {
		t.Errorf("empty lists should be omitted:\n%s", out)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
