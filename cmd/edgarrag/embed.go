package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"edgar_rag/pkg/core/embed"
)

var (
	embedReset     bool
	embedBatchSize int
	embedJSON      bool
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed stored chunks that have no vector yet",
	Long: `Embed sweeps the chunks table in id order and fills in missing vectors
with the configured provider. A provider whose vector size differs from
the stored column stops the sweep; pass --reset to drop all vectors and
resize the column.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := newEmbedder(ctx)
		if err != nil {
			return err
		}
		batch := app.cfg.Embedding.BatchSize
		if cmd.Flags().Changed("batch-size") {
			batch = embedBatchSize
		}

		b := &embed.Backfill{
			Store:     s,
			Embedder:  e,
			BatchSize: batch,
			Reset:     embedReset,
			Logger:    app.logger,
		}
		report, err := b.Run(ctx)
		if report != nil {
			if embedJSON {
				data, jerr := json.MarshalIndent(report, "", "  ")
				if jerr != nil {
					return jerr
				}
				cmd.Println(string(data))
			} else {
				cmd.Printf("Embedded %d chunks with %s (dim %d) in %d batches, %s\n",
					report.Embedded, report.Model, report.Dimension, report.Batches, report.Duration.Round(time.Millisecond))
				if report.FailedBatches > 0 {
					cmd.Printf("  %d batches (%d chunks) failed and remain pending\n", report.FailedBatches, report.FailedChunks)
				}
			}
		}
		return err
	},
}

func init() {
	embedCmd.Flags().BoolVar(&embedReset, "reset", false, "drop existing vectors and resize the column to the provider's dimension")
	embedCmd.Flags().IntVar(&embedBatchSize, "batch-size", embed.MaxBatchSize, "chunks per provider request")
	embedCmd.Flags().BoolVar(&embedJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(embedCmd)
}
