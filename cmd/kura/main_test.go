package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kura/internal/config"
	"github.com/hyperjump/kura/internal/models"
)

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"kura"}, "kura"},
		{"multiple words", []string{"keynote", "speaker"}, "keynote speaker"},
		{"single quoted phrase", []string{"keynote speaker"}, "keynote speaker"},
		{"extra spaces", []string{"  keynote ", " speaker"}, "keynote speaker"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfigFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 9191\n"), 0644); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(wd) }()

	cfg, path, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "config.yaml" || cfg.Server.Port != 9191 {
		t.Errorf("got path %q port %d", path, cfg.Server.Port)
	}

	explicit := filepath.Join(dir, "absent.yaml")
	cfg, path, err = loadConfig(explicit)
	if err != nil {
		t.Fatal(err)
	}
	if path != explicit || cfg.Server.Port != 8080 {
		t.Errorf("explicit path: got %q port %d", path, cfg.Server.Port)
	}
}

func TestSearchQueryFlags(t *testing.T) {
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cfg.Search.DefaultMinChunkScore = 0.6

	so := &searchOptions{limit: 3, minScore: 0.1}
	cmd := newSearchCommand(&rootOptions{})
	if err := cmd.Flags().Set("limit", "3"); err != nil {
		t.Fatal(err)
	}
	q := so.query(cmd, &cfg.Search, "fox")
	if q.Limit != 3 || q.MinChunkScore != 0.6 || q.RerankCount != cfg.Search.DefaultRerankCount {
		t.Errorf("got %+v", q)
	}
}

// writeTestConfig writes a config that keeps all data under a temp dir and
// needs no network or model files.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := `storage:
  data_dir: ` + filepath.Join(dir, "data") + `
chunking:
  tokenizer: words
  chunk_size: 50
  chunk_overlap: 5
embedding:
  provider: hashing
  dimensions: 384
vector:
  provider: memory
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandsEndToEnd(t *testing.T) {
	cfgPath := writeTestConfig(t)
	text := "Quarterly report. Revenue grew in every region during the third quarter."

	out, err := run(t, "--config", cfgPath, "ingest", "--text", "--format", "json", "--meta", "author=Jane Doe", text)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	var src models.Source
	if err := json.Unmarshal([]byte(out), &src); err != nil {
		t.Fatalf("ingest output %q: %v", out, err)
	}
	if src.ID == "" || src.Metadata[models.MetaAuthor] != "Jane Doe" {
		t.Fatalf("ingest: got %+v", src)
	}

	out, err = run(t, "--config", cfgPath, "search", "--format", "json", "--min-score", "0", text)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var resp models.SearchResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("search output %q: %v", out, err)
	}
	if resp.Total != 1 || resp.Results[0].Source.ID != src.ID {
		t.Fatalf("search after restart: got %+v", resp)
	}

	out, err = run(t, "--config", cfgPath, "sources", "list")
	if err != nil {
		t.Fatalf("sources list: %v", err)
	}
	if !strings.Contains(out, src.ID) || !strings.Contains(out, "Showing 1-1 of 1") {
		t.Errorf("sources list: got %q", out)
	}

	out, err = run(t, "--config", cfgPath, "sources", "get", "--format", "json", src.ID)
	if err != nil {
		t.Fatalf("sources get: %v", err)
	}
	var fetched models.Source
	if err := json.Unmarshal([]byte(out), &fetched); err != nil {
		t.Fatalf("sources get output %q: %v", out, err)
	}
	if len(fetched.Chunks) == 0 || len(fetched.Chunks) != len(src.Chunks) {
		t.Errorf("sources get: %d chunks, want %d", len(fetched.Chunks), len(src.Chunks))
	}

	out, err = run(t, "--config", cfgPath, "status", "--format", "json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status statusReport
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatal(err)
	}
	if status.Sources != 1 || int64(status.Vectors) != status.Chunks || status.Chunks == 0 {
		t.Errorf("status: got %+v", status)
	}

	if _, err := run(t, "--config", cfgPath, "summary", src.ID); err == nil {
		t.Error("summary without a language model should fail")
	}

	if _, err := run(t, "--config", cfgPath, "sources", "delete", src.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = run(t, "--config", cfgPath, "sources", "get", src.ID)
	if !models.IsNotFound(err) {
		t.Errorf("get after delete: got %v", err)
	}
}

func TestIngestDirectoryCommand(t *testing.T) {
	cfgPath := writeTestConfig(t)
	docs := t.TempDir()
	for name, content := range map[string]string{
		"a.txt":      "Alpha notes about the launch plan.",
		"b.md":       "# Beta\n\nThe beta programme starts in May.",
		"ignore.bin": "binary",
	} {
		if err := os.WriteFile(filepath.Join(docs, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	out, err := run(t, "--config", cfgPath, "ingest", docs)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out, "2 ingested, 0 unchanged, 0 failed") {
		t.Errorf("first pass: got %q", out)
	}
	out, err = run(t, "--config", cfgPath, "ingest", docs)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if !strings.Contains(out, "0 ingested, 2 unchanged, 0 failed") {
		t.Errorf("second pass: got %q", out)
	}

	out, err = run(t, "--config", cfgPath, "reconcile")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !strings.Contains(out, "removed 0") {
		t.Errorf("reconcile: got %q", out)
	}
}

func TestCommandArgs(t *testing.T) {
	cfgPath := writeTestConfig(t)
	tests := [][]string{
		{"search"},
		{"ask", "only-id"},
		{"summary"},
		{"search", "--format", "yaml", "fox"},
	}
	for _, args := range tests {
		if _, err := run(t, append([]string{"--config", cfgPath}, args...)...); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
}

func TestCommandTree(t *testing.T) {
	root := newRootCommand()
	for _, path := range [][]string{
		{"serve"}, {"ingest"}, {"search"}, {"ask"}, {"summary"}, {"watch"}, {"reconcile"}, {"status"},
		{"sources", "list"}, {"sources", "get"}, {"sources", "delete"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd == nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not found", path)
		}
	}
}
