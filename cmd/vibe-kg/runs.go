package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-kg/internal/output"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded ingestion runs",
		Long:  "List ingestion runs recorded in the DuckDB store, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			be, err := openBackend(cmd.Context(), a.logger)
			if err != nil {
				return err
			}
			defer be.close()
			if be.ledger == nil {
				return fmt.Errorf("run history requires the %s store, not %s", driverDuckDB, be.driver)
			}
			runs, err := be.ledger.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return output.WriteRuns(a.stdout, runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	return cmd
}
