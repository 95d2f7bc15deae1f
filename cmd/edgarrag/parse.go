package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"edgar_rag/pkg/core/facts"
	"edgar_rag/pkg/core/ingest"
	"edgar_rag/pkg/core/pipeline"
)

var (
	parseDir  string
	parseJSON bool
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Extract facts and chunks from local markdown filings",
	Long: `Parse walks the filings directory (<dir>/<TICKER>/<FORM>_<YYYY-MM-DD>.md),
extracts financial facts from statement tables and chunks the narrative
sections. Re-running over the same files inserts nothing new.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := app.cfg
		start, end, err := cfg.Window()
		if err != nil {
			return err
		}
		dir := cfg.DataDir
		if parseDir != "" {
			dir = parseDir
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		source := &ingest.LocalSource{
			Dir:       dir,
			Tickers:   cfg.Tickers,
			FormTypes: cfg.Forms(),
			Start:     start,
			End:       end,
		}
		report, err := pipeline.New(source, s, pipelineConfig(), app.logger).Run(ctx)
		if err != nil {
			return err
		}
		return printRunReport(cmd, report, parseJSON)
	},
}

func init() {
	parseCmd.Flags().StringVarP(&parseDir, "dir", "d", "", "filings directory (default: data_dir from config)")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "print the run report as JSON")
	rootCmd.AddCommand(parseCmd)
}

func pipelineConfig() pipeline.Config {
	return pipeline.Config{
		Chunk: app.cfg.ChunkOptions(),
		Validation: pipeline.ValidationConfig{
			Enabled:               app.cfg.Validation.Enabled,
			BalanceSheetTolerance: app.cfg.Validation.BalanceSheetTolerance,
		},
	}
}

func printRunReport(cmd *cobra.Command, report *pipeline.RunReport, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Run %s (%s)\n", report.RunID, report.Duration.Round(time.Millisecond))
	cmd.Printf("  Filings:    %d processed, %d failed, %d unresolved\n", report.Processed, report.Failed, report.Unresolved)
	cmd.Printf("  Facts:      %d inserted, %d already stored\n", report.Facts.Inserted, report.Facts.Conflicts)
	cmd.Printf("  Chunks:     %d inserted, %d already stored\n", report.Chunks.Inserted, report.Chunks.Conflicts)
	if len(report.SkipReasons) > 0 {
		cmd.Println("  Skipped rows:")
		reasons := make([]facts.SkipReason, 0, len(report.SkipReasons))
		for r := range report.SkipReasons {
			reasons = append(reasons, r)
		}
		sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
		for _, r := range reasons {
			cmd.Printf("    %-20s %d\n", r, report.SkipReasons[r])
		}
	}
	for _, fr := range report.Filings {
		switch {
		case fr.Err != nil:
			cmd.Printf("  ! %s: %v\n", fr.Ref.Name(), fr.Err)
		case fr.FailedSections() > 0 || fr.FailedStatements() > 0:
			cmd.Printf("  ~ %s: %d section and %d statement failures\n", fr.Ref.Name(), fr.FailedSections(), fr.FailedStatements())
		}
		for _, w := range fr.Warnings {
			cmd.Printf("  ? %s: %s\n", fr.Ref.Name(), w)
		}
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d filings failed", report.Failed)
	}
	return nil
}
