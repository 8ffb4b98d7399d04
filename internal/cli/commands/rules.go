package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/epmforge/internal/plan"
)

// NewRulesCommand creates the rules command, which resolves a model's
// dependency rules without generating any data.
func NewRulesCommand(getConfig ConfigFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "rules <model.json>",
		Short: "Resolve and display a model's rule plan",
		Long: `Parse a model definition's dependency rules and show the resolved
evaluation plan: which measures are randomly generated, which are
computed, in what order, and which rules were dropped and why.`,
		Example: `  # Inspect the rule plan for a model
  epmforge rules model.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := getLogger(cmd.Context())

			model, err := readGenerationConfig(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			p := plan.Build(model.Rules, model.DimensionNames(), logger)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Base measures: %s\n", strings.Join(p.Base, ", "))
			fmt.Fprintln(out)

			if len(p.Derived) > 0 {
				t := table.NewWriter()
				t.SetOutputMirror(out)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"#", "Target", "Formula"})
				for i, dr := range p.Derived {
					t.AppendRow(table.Row{i + 1, dr.Formula.Target, dr.Formula.String()})
				}
				t.Render()
			} else {
				fmt.Fprintln(out, "No derived measures.")
			}

			for _, w := range p.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
			}
			return nil
		},
	}
}
