package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avvvet/naturalcheck/internal/llm"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	var freeOnly bool
	var query string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models offered by the endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.analysisConfig(cmd)
			if err != nil {
				return err
			}

			entries, err := ctx.client().ListModels(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}
			if freeOnly {
				entries = llm.FilterFree(entries)
			}
			entries = llm.SearchCatalog(entries, query)

			if ctx.flags.json {
				return writeJSON(cmd, entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.ID, e.DisplayName, priceOrDash(e.PromptPrice), priceOrDash(e.CompletionPrice)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Prompt", "Completion"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&freeOnly, "free", false, "Only show models with zero prompt and completion price")
	cmd.Flags().StringVarP(&query, "search", "s", "", "Case-insensitive filter on id or name")
	return cmd
}

func priceOrDash(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}
