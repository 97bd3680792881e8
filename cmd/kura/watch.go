package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/cli"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var noSync bool
	cmd := &cobra.Command{
		Use:   "watch [dir]...",
		Short: "Keep sources in step with directories until interrupted",
		Long: `Ingest every supported file under the directories, then re-ingest files
as they change and delete the sources of removed files. Without arguments the
directories from watch.directories in the config are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withComponents(cmd, func(c *Components) error {
				dirs := args
				if len(dirs) == 0 {
					dirs = c.Config.Watch.Directories
				}
				if len(dirs) == 0 {
					return fmt.Errorf("no directories to watch; pass them as arguments or set watch.directories")
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				w, err := startWatcher(ctx, c, dirs)
				if err != nil {
					return err
				}
				defer w.Stop()
				if !noSync {
					report := w.Sync(ctx)
					fmt.Fprintf(cmd.OutOrStdout(), "synced %d files (%d failed)\n", report.Files, report.Failed)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "watching %d directories, press Ctrl+C to stop\n", len(w.Directories()))
				<-ctx.Done()
				c.Logger.Info("watch stopped", zap.Strings("directories", w.Directories()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip the initial ingestion of existing files")
	return cmd
}

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Delete vector points whose source no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}
			return opts.withComponents(cmd, func(c *Components) error {
				report, err := c.Indexer.Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				if out == cli.OutputJSON {
					return cli.WriteJSON(cmd.OutOrStdout(), report)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scanned %d points, removed %d from %d orphaned sources\n",
					report.Scanned, report.Removed, len(report.OrphanSources))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}
