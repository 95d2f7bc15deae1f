package main

import (
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the filings, facts and chunks tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		cmd.Printf("Schema ready (%s)\n", app.cfg.Store.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
