package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"nci-backend/internal/criteria"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "criteria",
		Short: "List the scoring criteria and risk tiers",
		Args:  cobra.NoArgs,
		RunE:  runCriteria,
	})
}

func runCriteria(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, c := range criteria.All() {
		fmt.Fprintf(out, "%2d. %s\n    %s\n    e.g. %s\n", c.ID, c.Category, c.Question, c.Example)
	}
	fmt.Fprintln(out)
	for _, r := range criteria.Ranges() {
		style := tierStyle(r)
		fmt.Fprintf(out, "%3d-%-3d %s\n", r.Min, r.Max, style.Render(r.Level.Label()))
	}
	return nil
}
