package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/server"
	"github.com/hyperjump/kura/internal/watcher"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Start the HTTP API. Directories listed under watch.directories are synced and watched while the server runs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withComponents(cmd, func(c *Components) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				deps := server.Dependencies{
					Indexer:   c.Indexer,
					Engine:    c.Engine,
					Assistant: c.Assistant,
					Storage:   c.Storage,
					Vectors:   c.Vectors,
					Keywords:  c.Keywords,
					Metrics:   c.Metrics,
				}
				if !noWatch && len(c.Config.Watch.Directories) > 0 {
					w, err := startWatcher(ctx, c, c.Config.Watch.Directories)
					if err != nil {
						return err
					}
					defer w.Stop()
					deps.Watch = w
					synced := make(chan struct{})
					go func() {
						defer close(synced)
						w.Sync(ctx)
					}()
					defer func() {
						stop()
						<-synced
					}()
				}

				srv := server.NewServer(deps, c.Config, c.Logger)
				errc := make(chan error, 1)
				go func() { errc <- srv.Start() }()

				select {
				case err := <-errc:
					return err
				case <-ctx.Done():
				}
				c.Logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Stop(shutdownCtx); err != nil {
					c.Logger.Warn("server shutdown failed", zap.Error(err))
				}
				return <-errc
			})
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not watch the configured directories")
	return cmd
}

// startWatcher watches dirs and feeds changes to the indexer.
func startWatcher(ctx context.Context, c *Components, dirs []string) (*watcher.Watcher, error) {
	w := watcher.New(c.Indexer, watcher.Options{
		Roots:     dirs,
		Recursive: c.Config.Watch.RecursiveOrDefault(),
		Debounce:  c.Config.Watch.Debounce,
	}, watcher.WithLogger(c.Logger))
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
