// Package cli formats kura results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/search"
	"github.com/hyperjump/kura/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	snippetLen = 200
	rule       = "─────────────────────────────────────────────────────────"
)

// ParseFormat returns the format named s. Unknown names are an error.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes cross-source search results. Unknown formats
// are treated as text.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d sources in %dms\n", response.Total, response.QueryTime)
	if response.Suggestion != "" {
		fmt.Fprintf(w, "Did you mean: %s\n", response.Suggestion)
	}
	fmt.Fprintln(w)
	for i, result := range response.Results {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "#%d | Score: %.4f (max chunk %.4f, coverage %.2f)\n",
			i+1, result.CombinedScore, result.MaxChunkScore, result.ChunkCoverage)
		writeSourceHeader(w, result.Source)
		writeMatches(w, result.MatchedChunks, response.Query, 3)
	}
	return nil
}

// WriteSourceResult writes the matches of a single-source search.
func WriteSourceResult(w io.Writer, query string, result *models.SearchResult, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, result)
	}
	writeSourceHeader(w, result.Source)
	fmt.Fprintf(w, "%d matching chunks\n", len(result.MatchedChunks))
	writeMatches(w, result.MatchedChunks, query, 0)
	return nil
}

func writeSourceHeader(w io.Writer, src *models.Source) {
	if src == nil {
		return
	}
	fmt.Fprintf(w, "ID: %s\n", src.ID)
	if title := src.Title(); title != "" {
		fmt.Fprintf(w, "Title: %s\n", title)
	}
	if path := src.Metadata["source_path"]; path != "" {
		fmt.Fprintf(w, "Path: %s\n", path)
	}
}

// writeMatches prints up to limit matches; limit 0 prints all.
func writeMatches(w io.Writer, matches []*models.ChunkMatch, query string, limit int) {
	for i, m := range matches {
		if limit > 0 && i == limit {
			fmt.Fprintf(w, "  ... %d more\n", len(matches)-limit)
			break
		}
		loc := ""
		if m.Chunk.SectionTitle != "" {
			loc = " [" + m.Chunk.SectionTitle + "]"
		}
		if m.Chunk.PageNumber > 0 {
			loc += fmt.Sprintf(" (page %d)", m.Chunk.PageNumber)
		}
		fmt.Fprintf(w, "  %.4f%s\n    %s\n", m.Score, loc, search.Snippet(m.Chunk.Content, query, snippetLen))
	}
	fmt.Fprintln(w)
}

// WriteSources writes one page of a source listing.
func WriteSources(w io.Writer, page *models.SourcePage, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, page)
	}
	if len(page.Sources) == 0 {
		fmt.Fprintln(w, "No sources.")
		return nil
	}
	for _, src := range page.Sources {
		fmt.Fprintf(w, "%s  %s  %s\n", src.ID, src.CreatedAt.Format("2006-01-02 15:04"), utils.Truncate(src.Title(), 60))
	}
	fmt.Fprintf(w, "\nShowing %d-%d of %d\n", page.Offset+1, page.Offset+len(page.Sources), page.Total)
	return nil
}

// WriteSource writes a source with its metadata and chunk outline.
func WriteSource(w io.Writer, src *models.Source, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, src)
	}
	writeSourceHeader(w, src)
	for _, key := range []string{models.MetaAuthor, models.MetaCreationDate, models.MetaFilename} {
		if v := src.Metadata[key]; v != "" {
			fmt.Fprintf(w, "%s: %s\n", key, v)
		}
	}
	fmt.Fprintf(w, "Chunks: %d\n\n", len(src.Chunks))
	for i, c := range src.Chunks {
		fmt.Fprintf(w, "%3d  %d-%d  %s\n", i+1, c.StartIndex, c.EndIndex, utils.Truncate(strings.Join(strings.Fields(c.Content), " "), 60))
	}
	return nil
}

// WriteAnswer writes a grounded answer with its citations.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, answer)
	}
	fmt.Fprintf(w, "%s\n", answer.Answer)
	if len(answer.Citations) > 0 {
		fmt.Fprintln(w, "\nSources:")
		writeMatches(w, answer.Citations, answer.Question, 0)
	}
	return nil
}

// WriteSummary writes a summary with its key points and entities.
func WriteSummary(w io.Writer, summary *models.Summary, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, summary)
	}
	fmt.Fprintf(w, "%s\n", summary.Summary)
	writeList(w, "Key points", summary.KeyPoints)
	writeList(w, "Dates", summary.Entities.Dates)
	writeList(w, "Names", summary.Entities.Names)
	writeList(w, "Actions", summary.Entities.Actions)
	return nil
}

func writeList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}
