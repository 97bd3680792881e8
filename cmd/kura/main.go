// Package main is the kura CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/config"
	"github.com/hyperjump/kura/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kura/config.yaml"

type rootOptions struct {
	configPath string
	debug      bool
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "kura",
		Short:        "Ingest documents and search them by meaning",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCommand(opts),
		newIngestCommand(opts),
		newSearchCommand(opts),
		newAskCommand(opts),
		newSummaryCommand(opts),
		newSourcesCommand(opts),
		newWatchCommand(opts),
		newReconcileCommand(opts),
		newStatusCommand(opts),
	)
	return root
}

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if it exists, so running from a project
// directory picks up the project's config. It returns the path actually used.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and creates the logger for a command.
func (o *rootOptions) setup() (*config.Config, *zap.Logger, error) {
	cfg, path, err := loadConfig(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || o.debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", path), zap.Bool("debug", debug))
	return cfg, logger, nil
}

// withComponents runs fn with initialized components and releases them after.
func (o *rootOptions) withComponents(cmd *cobra.Command, fn func(*Components) error) error {
	cfg, logger, err := o.setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	c, err := initializeComponents(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// buildSearchQuery joins args into one query string.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(strings.Join(args, " ")), " "))
}
