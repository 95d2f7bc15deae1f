package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"edgar_rag/pkg/core/store"
	"edgar_rag/pkg/models"
)

var (
	searchLimit   int
	searchTicker  string
	searchSection string
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find the chunks closest to a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return errors.New("query is empty")
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := newEmbedder(ctx)
		if err != nil {
			return err
		}
		vectors, err := e.Embed(ctx, []string{query})
		if err != nil {
			return err
		}
		if len(vectors) != 1 {
			return errors.New("provider returned no embedding for the query")
		}

		hits, err := s.SearchChunks(ctx, store.SearchQuery{
			Vector:  vectors[0],
			Ticker:  strings.ToUpper(searchTicker),
			Section: searchSection,
			Limit:   searchLimit,
		})
		if err != nil {
			return err
		}

		if searchJSON {
			for i := range hits {
				hits[i].Embedding = nil
			}
			data, err := json.MarshalIndent(hits, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		}
		if len(hits) == 0 {
			cmd.Println("No embedded chunks matched.")
			return nil
		}
		for i, h := range hits {
			cmd.Printf("%d. [%.3f] %s %s %s | %s #%d\n", i+1, h.Score,
				h.Ticker, h.FilingType, h.FilingDate.Format(models.DateLayout), h.Section, h.ChunkIndex)
			cmd.Printf("   %s\n", preview(h.ChunkText, 240))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "number of results")
	searchCmd.Flags().StringVar(&searchTicker, "ticker", "", "restrict to one ticker")
	searchCmd.Flags().StringVar(&searchSection, "section", "", "restrict to one canonical section")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func preview(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "..."
}
