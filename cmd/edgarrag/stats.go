package main

import (
	"encoding/json"
	"sort"

	"github.com/spf13/cobra"

	"edgar_rag/pkg/models"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what is stored per ticker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.Stats(ctx)
		if err != nil {
			return err
		}
		if statsJSON {
			data, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		}

		cmd.Printf("Filings: %d\n", stats.Filings)
		cmd.Printf("Facts:   %d\n", stats.Facts)
		levels := make([]models.UnitConfidence, 0, len(stats.FactsByConfidence))
		for c := range stats.FactsByConfidence {
			levels = append(levels, c)
		}
		sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
		for _, c := range levels {
			cmd.Printf("  %-9s %d\n", c, stats.FactsByConfidence[c])
		}
		cmd.Printf("Chunks:  %d (%d embedded, %.1f%%, dim %d)\n",
			stats.Chunks, stats.EmbeddedChunks, stats.Coverage()*100, stats.EmbeddingDimension)
		if len(stats.Tickers) > 0 {
			cmd.Println()
			cmd.Printf("%-8s %8s %8s %8s %9s\n", "TICKER", "FILINGS", "FACTS", "CHUNKS", "EMBEDDED")
			for _, t := range stats.Tickers {
				cmd.Printf("%-8s %8d %8d %8d %9d\n", t.Ticker, t.Filings, t.Facts, t.Chunks, t.Embedded)
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print stats as JSON")
	rootCmd.AddCommand(statsCmd)
}
