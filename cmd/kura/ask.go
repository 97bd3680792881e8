package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kura/internal/cli"
	"github.com/hyperjump/kura/internal/models"
)

func newAskCommand(opts *rootOptions) *cobra.Command {
	var format, serverURL string
	cmd := &cobra.Command{
		Use:     "ask <source-id> <question>",
		Short:   "Answer a question from one source",
		Example: `  kura ask 0b6f7a52-6a51-4f3e-9c55-4c1e0f6f1d2a who is the keynote speaker?`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}
			question := buildSearchQuery(args[1:])
			if serverURL != "" {
				answer, err := cli.NewClient(serverURL, defaultServerTimeout).Ask(cmd.Context(), args[0], question)
				if err != nil {
					return err
				}
				return cli.WriteAnswer(cmd.OutOrStdout(), answer, out)
			}
			return opts.withComponents(cmd, func(c *Components) error {
				answer, err := c.Assistant.Ask(cmd.Context(), args[0], question)
				if err != nil {
					return err
				}
				return cli.WriteAnswer(cmd.OutOrStdout(), answer, out)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().StringVar(&serverURL, "server", "", "kura server URL; empty uses the local data directory")
	return cmd
}

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	var (
		refresh bool
		format  string
	)
	cmd := &cobra.Command{
		Use:   "summary <source-id>",
		Short: "Show the summary of a source, generating it when missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}
			return opts.withComponents(cmd, func(c *Components) error {
				ctx := cmd.Context()
				var summary *models.Summary
				if !refresh {
					summary, err = c.Assistant.GetSummary(ctx, args[0])
					if err != nil && !isMissingSummary(err) {
						return err
					}
				}
				if summary == nil {
					if summary, err = c.Assistant.Summarize(ctx, args[0]); err != nil {
						return err
					}
				}
				return cli.WriteSummary(cmd.OutOrStdout(), summary, out)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "regenerate the summary even if one is stored")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

// isMissingSummary reports whether err says the summary, not the source, is
// absent.
func isMissingSummary(err error) bool {
	var nf *models.NotFoundError
	return errors.As(err, &nf) && nf.Kind == "summary"
}
