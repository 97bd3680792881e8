package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kura/internal/cli"
	"github.com/hyperjump/kura/internal/config"
	"github.com/hyperjump/kura/internal/models"
)

const defaultServerTimeout = 60 * time.Second

type searchOptions struct {
	limit     int
	minScore  float64
	rerank    int
	sourceID  string
	format    string
	serverURL string
}

func newSearchCommand(opts *rootOptions) *cobra.Command {
	so := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search all sources, or one with --source",
		Long: `Search sources by meaning. The query is all arguments joined by spaces.
Results are sources ranked by their best chunk score and the share of
matching chunks. With --server the search runs on a running kura server.`,
		Example: `  kura search machine learning
  kura search --min-score 0.5 --limit 5 "quarterly revenue"
  kura search --source 0b6f7a52-6a51-4f3e-9c55-4c1e0f6f1d2a keynote speaker
  kura search --server http://localhost:8080 --format json invoices`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(so.format)
			if err != nil {
				return err
			}
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			q := so.query(cmd, &cfg.Search, buildSearchQuery(args))
			w := cmd.OutOrStdout()

			if so.serverURL != "" {
				if so.sourceID != "" {
					return errors.New("--source is not supported with --server")
				}
				resp, err := cli.NewClient(so.serverURL, defaultServerTimeout).Search(cmd.Context(), q)
				if err != nil {
					return err
				}
				return cli.WriteSearchResults(w, resp, format)
			}

			c, err := initializeComponents(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()
			if so.sourceID != "" {
				result, err := c.Engine.SearchSource(cmd.Context(), so.sourceID, q)
				if err != nil {
					return err
				}
				return cli.WriteSourceResult(w, q.Query, result, format)
			}
			resp, err := c.Engine.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			return cli.WriteSearchResults(w, resp, format)
		},
	}
	f := cmd.Flags()
	f.IntVar(&so.limit, "limit", models.DefaultLimit, "maximum number of results")
	f.Float64Var(&so.minScore, "min-score", models.DefaultMinChunkScore, "minimum chunk similarity in [0,1]")
	f.IntVar(&so.rerank, "rerank", models.DefaultRerankCount, "chunk matches fetched before grouping by source")
	f.StringVar(&so.sourceID, "source", "", "search only this source")
	f.StringVar(&so.format, "format", "text", "output format: text or json")
	f.StringVar(&so.serverURL, "server", "", "kura server URL; empty searches the local data directory")
	return cmd
}

// query starts from the configured defaults and applies the flags the user set.
func (so *searchOptions) query(cmd *cobra.Command, cfg *config.SearchConfig, text string) *models.SearchQuery {
	q := &models.SearchQuery{
		Query:         text,
		Limit:         cfg.DefaultLimit,
		MinChunkScore: cfg.DefaultMinChunkScore,
		RerankCount:   cfg.DefaultRerankCount,
	}
	f := cmd.Flags()
	if f.Changed("limit") {
		q.Limit = so.limit
	}
	if f.Changed("min-score") {
		q.MinChunkScore = so.minScore
	}
	if f.Changed("rerank") {
		q.RerankCount = so.rerank
	}
	return q
}
