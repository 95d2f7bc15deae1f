package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"edgar_rag/pkg/core/config"
	"edgar_rag/pkg/core/embed"
	"edgar_rag/pkg/core/logger"
	"edgar_rag/pkg/core/metrics"
	"edgar_rag/pkg/core/store"
)

var (
	configFile  string
	storeDriver string
	databaseURL string
	sqlitePath  string
	logLevel    string
	metricsAddr string
)

// app is populated by the root command before any subcommand runs.
var app struct {
	cfg    config.Config
	logger *zap.Logger
}

var rootCmd = &cobra.Command{
	Use:   "edgarrag",
	Short: "Extract financial facts and narrative chunks from SEC filings",
	Long: `edgarrag turns 10-K and 10-Q filings into two tables: normalized
financial facts parsed from statement tables, and narrative chunks for
vector search. Filings come from a local markdown directory or from SEC EDGAR.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app.logger != nil {
			_ = app.logger.Sync()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "YAML config file")
	flags.StringVar(&storeDriver, "store", "", "storage driver: postgres, sqlite or memory")
	flags.StringVar(&databaseURL, "database-url", "", "Postgres connection URL")
	flags.StringVar(&sqlitePath, "sqlite-path", "", "SQLite database file")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	applyFlag(cmd, "store", storeDriver, &cfg.Store.Driver)
	applyFlag(cmd, "database-url", databaseURL, &cfg.Store.DatabaseURL)
	applyFlag(cmd, "sqlite-path", sqlitePath, &cfg.Store.SQLitePath)
	applyFlag(cmd, "log-level", logLevel, &cfg.Logging.Level)
	applyFlag(cmd, "metrics-addr", metricsAddr, &cfg.MetricsAddr)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	l, err := logger.New(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return err
	}
	app.cfg = cfg
	app.logger = l

	metrics.Register()
	if cfg.MetricsAddr != "" {
		metrics.Serve(cmd.Context(), cfg.MetricsAddr, l)
	}
	return nil
}

func applyFlag(cmd *cobra.Command, name, value string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst = value
	}
}

// openStore opens the configured store and applies the schema.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	dim := app.cfg.Embedding.Dimension
	switch app.cfg.Store.Driver {
	case config.DriverPostgres:
		s, err = store.NewPostgres(ctx, app.cfg.Store.DatabaseURL, dim)
	case config.DriverSQLite:
		s, err = store.NewSQLite(app.cfg.Store.SQLitePath, dim)
	default:
		s = store.NewMemoryStore()
	}
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newEmbedder(ctx context.Context) (embed.Embedder, error) {
	e := app.cfg.Embedding
	return embed.New(ctx, embed.Config{
		Provider:  e.Provider,
		Model:     e.Model,
		APIKey:    e.APIKey,
		BaseURL:   e.BaseURL,
		Dimension: e.Dimension,
	})
}
