package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var discard bool

	cmd := &cobra.Command{
		Use:   "report <report-id>",
		Short: "Print the conversation transcript of a failed analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := ctx.transcripts()
			if err != nil {
				return err
			}
			if ctx.flags.json {
				t, err := reports.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := writeJSON(cmd, t); err != nil {
					return err
				}
			} else {
				text, err := reports.Render(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), text)
			}
			if discard {
				return reports.Discard(cmd.Context(), args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&discard, "discard", false, "Delete the transcript after printing it")
	return cmd
}
