package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avvvet/naturalcheck/internal/llm"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Send one test request to verify endpoint, key and model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.analysisConfig(cmd)
			if err != nil {
				return err
			}

			result := llm.ProbeConnection(cmd.Context(), ctx.client(), cfg)
			if ctx.flags.json {
				if err := writeJSON(cmd, result); err != nil {
					return err
				}
			} else if result.OK {
				fmt.Fprintf(cmd.OutOrStdout(), "Connection OK (%s)\n", cfg.Model)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Connection failed: %s\n", result.Detail)
			}
			if !result.OK {
				return errors.New("connection test failed")
			}
			return nil
		},
	}
}
