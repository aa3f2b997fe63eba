package main

import (
	"github.com/spf13/cobra"

	"github.com/inodb/vibe-kg/internal/output"
)

func newClassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "classify <name>...",
		Short:   "Print the entity type of each name",
		Example: `  vibe-kg classify ZmDREB2A "drought tolerance" B73 qDTY1.1`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return output.WriteClassifications(a.stdout, args)
		},
	}
}
