package e2e

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hyperjump/kura/internal/extract"
)

func TestBuildCorpus(t *testing.T) {
	c := BuildCorpus()
	if len(c.Documents) != len(topics) || len(c.Cases) != len(topics) {
		t.Fatalf("got %d documents and %d cases", len(c.Documents), len(c.Cases))
	}
	seen := make(map[string]bool)
	for _, d := range c.Documents {
		if _, err := uuid.Parse(d.ID); err != nil {
			t.Errorf("document id %q is not a UUID", d.ID)
		}
		if seen[d.ID] {
			t.Errorf("duplicate id %s", d.ID)
		}
		seen[d.ID] = true
	}
	if again := BuildCorpus(); again.Documents[0].ID != c.Documents[0].ID {
		t.Error("document ids are not stable")
	}
}

func TestQueryPhrasesAreUnique(t *testing.T) {
	c := BuildCorpus()
	for _, tc := range c.Cases {
		var holders []string
		for _, d := range c.Documents {
			if containsPhrase(d, tc.Query) {
				holders = append(holders, d.ID)
			}
		}
		if len(holders) != 1 || holders[0] != tc.ExpectedID {
			t.Errorf("phrase %q is held by %v, want only %s", tc.Query, holders, tc.ExpectedID)
		}
	}
}

func TestInputs(t *testing.T) {
	c := BuildCorpus()
	inputs := c.Inputs()
	for i, in := range inputs {
		d := c.Documents[i]
		if in.ID != d.ID || !strings.HasPrefix(in.Text, d.Title+"\n\n") {
			t.Errorf("input %d does not match document %q", i, d.Title)
		}
		if !strings.HasSuffix(in.Filename, ".txt") || strings.Contains(in.Filename, " ") {
			t.Errorf("input %d filename %q", i, in.Filename)
		}
	}
}

func TestMinimalFilesAreExtractable(t *testing.T) {
	e := extract.NewExtractor()
	sample := "Harbour dredging permit & fishing season"
	for _, ext := range FileExtensions {
		t.Run(ext, func(t *testing.T) {
			content, err := MinimalFile(ext, sample)
			if err != nil {
				t.Fatal(err)
			}
			doc, err := e.ExtractBytes(content, ext)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if !strings.Contains(doc.Text, sample) {
				t.Errorf("extracted %q does not contain %q", doc.Text, sample)
			}
		})
	}
}
