package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"edgar_rag/pkg/core/ingest"
	"edgar_rag/pkg/core/pipeline"
)

var (
	fetchDir    string
	fetchIngest bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download filings from SEC EDGAR as markdown",
	Long: `Fetch lists the configured tickers' filings from the EDGAR submissions API,
downloads each primary document and writes it to the filings directory in
the layout parse reads. With --ingest each filing is also processed into
the store as it arrives.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := app.cfg
		start, end, err := cfg.Window()
		if err != nil {
			return err
		}
		dir := cfg.DataDir
		if fetchDir != "" {
			dir = fetchDir
		}

		client, err := ingest.NewEDGARClient(ingest.EDGARConfig{UserAgent: cfg.UserAgent})
		if err != nil {
			return err
		}
		source := &ingest.EDGARSource{
			Client:    client,
			Tickers:   cfg.Tickers,
			FormTypes: cfg.Forms(),
			Start:     start,
			End:       end,
		}
		refs, err := source.List(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("Found %d filings\n", len(refs))

		var orch *pipeline.Orchestrator
		if fetchIngest {
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			orch = pipeline.New(source, s, pipelineConfig(), app.logger)
		}

		failed := 0
		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := source.Fetch(ctx, ref)
			if err != nil {
				failed++
				app.logger.Warn("fetch failed", zap.String("filing", ref.Name()), zap.Error(err))
				continue
			}
			path, err := ingest.Save(dir, doc)
			if err != nil {
				return err
			}
			cmd.Printf("  %s\n", path)

			if orch == nil {
				continue
			}
			fr, err := orch.ProcessDocument(ctx, doc)
			if err != nil {
				failed++
				app.logger.Warn("ingest failed", zap.String("filing", ref.Name()), zap.Error(err))
				continue
			}
			cmd.Printf("    facts +%d, chunks +%d\n", fr.Facts.Inserted, fr.Chunks.Inserted)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d filings failed", failed, len(refs))
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchDir, "dir", "d", "", "output directory (default: data_dir from config)")
	fetchCmd.Flags().BoolVar(&fetchIngest, "ingest", false, "process each downloaded filing into the store")
	rootCmd.AddCommand(fetchCmd)
}
