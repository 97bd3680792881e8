package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kura/internal/cli"
	"github.com/hyperjump/kura/internal/storage"
)

type statusReport struct {
	Sources          int64         `json:"sources"`
	Chunks           int64         `json:"chunks"`
	Vectors          int           `json:"vectors"`
	KeywordDocuments uint64        `json:"keyword_documents"`
	VectorProvider   string        `json:"vector_provider"`
	Embedding        string        `json:"embedding_provider"`
	DataDir          string        `json:"data_dir"`
	DiskUsage        storage.Usage `json:"disk_usage"`
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var format, serverURL string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show source, chunk and index counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}
			if serverURL != "" {
				status, err := cli.NewClient(serverURL, defaultServerTimeout).Status(cmd.Context())
				if err != nil {
					return err
				}
				return cli.WriteJSON(cmd.OutOrStdout(), status)
			}
			return opts.withComponents(cmd, func(c *Components) error {
				ctx := cmd.Context()
				r := statusReport{
					VectorProvider: c.Config.Vector.Provider,
					Embedding:      c.Config.Embedding.Provider,
					DataDir:        c.Config.Storage.DataDir,
				}
				if r.Sources, err = c.Storage.CountSources(ctx); err != nil {
					return err
				}
				if r.Chunks, err = c.Storage.CountChunks(ctx); err != nil {
					return err
				}
				if r.Vectors, err = c.Vectors.Count(ctx); err != nil {
					return err
				}
				if r.KeywordDocuments, err = c.Keywords.DocCount(); err != nil {
					return err
				}
				if r.DiskUsage, err = storage.DiskUsage(
					c.Config.Storage.DatabasePath,
					c.Config.Storage.KeywordIndexPath,
					c.Config.Storage.VectorSnapshot,
				); err != nil {
					return err
				}
				if out == cli.OutputJSON {
					return cli.WriteJSON(cmd.OutOrStdout(), r)
				}
				writeStatus(cmd.OutOrStdout(), &r)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().StringVar(&serverURL, "server", "", "kura server URL; the response is printed as JSON")
	return cmd
}

func writeStatus(w io.Writer, r *statusReport) {
	fmt.Fprintf(w, "Sources:   %d\n", r.Sources)
	fmt.Fprintf(w, "Chunks:    %d\n", r.Chunks)
	fmt.Fprintf(w, "Vectors:   %d (%s)\n", r.Vectors, r.VectorProvider)
	fmt.Fprintf(w, "Keywords:  %d\n", r.KeywordDocuments)
	fmt.Fprintf(w, "Embedding: %s\n", r.Embedding)
	fmt.Fprintf(w, "Data dir:  %s (%d files, %d bytes)\n", r.DataDir, r.DiskUsage.Files, r.DiskUsage.Bytes)
}
