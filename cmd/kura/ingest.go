package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kura/internal/cli"
	"github.com/hyperjump/kura/internal/models"
)

func newIngestCommand(opts *rootOptions) *cobra.Command {
	var (
		text     bool
		filename string
		meta     map[string]string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "ingest <file|dir>...",
		Short: "Ingest files, directories or literal text",
		Long: `Ingest files and directories. Directories are walked recursively and
unchanged files are skipped. With --text each argument is ingested as a text source.`,
		Example: `  kura ingest notes.md report.pdf
  kura ingest ~/Documents/papers
  kura ingest --text --filename memo.txt --meta author="Jane Doe" "Meeting moved to Friday."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}
			return opts.withComponents(cmd, func(c *Components) error {
				ctx := cmd.Context()
				w := cmd.OutOrStdout()
				failed := 0
				for _, arg := range args {
					if text {
						src, err := c.Indexer.Ingest(ctx, &models.SourceInput{Text: arg, Filename: filename, Metadata: meta})
						if err != nil {
							return err
						}
						if err := writeIngested(w, src, out); err != nil {
							return err
						}
						continue
					}

					info, err := os.Stat(arg)
					if err != nil {
						return err
					}
					if !info.IsDir() {
						src, err := c.Indexer.IngestFile(ctx, arg)
						if err != nil {
							return fmt.Errorf("failed to ingest %s: %w", arg, err)
						}
						if err := writeIngested(w, src, out); err != nil {
							return err
						}
						continue
					}
					report, err := c.Indexer.IngestDirectory(ctx, arg)
					if err != nil {
						return err
					}
					failed += report.Failed
					if out == cli.OutputJSON {
						if err := cli.WriteJSON(w, report); err != nil {
							return err
						}
						continue
					}
					for _, f := range report.Files {
						switch {
						case f.Error != "":
							fmt.Fprintf(w, "FAIL  %s: %s\n", f.Path, f.Error)
						case f.Unchanged:
							fmt.Fprintf(w, "SKIP  %s\n", f.Path)
						default:
							fmt.Fprintf(w, "OK    %s (%d chunks)\n", f.Path, f.Chunks)
						}
					}
					fmt.Fprintf(w, "%s: %d ingested, %d unchanged, %d failed\n", arg, report.Ingested, report.Unchanged, report.Failed)
				}
				if failed > 0 {
					return fmt.Errorf("%d files failed to ingest", failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "treat arguments as text instead of paths")
	cmd.Flags().StringVar(&filename, "filename", "", "filename hint for --text sources")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "metadata for --text sources (key=value)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func writeIngested(w io.Writer, src *models.Source, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		return cli.WriteJSON(w, src)
	}
	fmt.Fprintf(w, "%s  %d chunks  %s\n", src.ID, len(src.Chunks), src.Title())
	return nil
}
