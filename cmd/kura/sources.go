package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kura/internal/cli"
	"github.com/hyperjump/kura/internal/models"
)

func newSourcesCommand(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List, show and delete sources",
	}
	cmd.PersistentFlags().StringVar(&format, "format", "text", "output format: text or json")

	var offset, limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List sources, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}
			if offset < 0 || limit < 1 {
				return &models.ValidationError{Field: "limit", Reason: "offset must be >= 0 and limit >= 1"}
			}
			return opts.withComponents(cmd, func(c *Components) error {
				ctx := cmd.Context()
				sources, err := c.Storage.ListSources(ctx, offset, limit)
				if err != nil {
					return err
				}
				total, err := c.Storage.CountSources(ctx)
				if err != nil {
					return err
				}
				return cli.WriteSources(cmd.OutOrStdout(), &models.SourcePage{
					Sources: sources,
					Offset:  offset,
					Limit:   limit,
					Total:   int(total),
				}, out)
			})
		},
	}
	list.Flags().IntVar(&offset, "offset", 0, "number of sources to skip")
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of sources")

	get := &cobra.Command{
		Use:   "get <source-id>",
		Short: "Show a source with its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}
			return opts.withComponents(cmd, func(c *Components) error {
				src, err := c.Storage.GetSource(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return cli.WriteSource(cmd.OutOrStdout(), src, out)
			})
		},
	}

	del := &cobra.Command{
		Use:     "delete <source-id>...",
		Aliases: []string{"rm"},
		Short:   "Delete sources with their chunks, vectors and summaries",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withComponents(cmd, func(c *Components) error {
				for _, id := range args {
					if err := c.Indexer.Delete(cmd.Context(), id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, get, del)
	return cmd
}
