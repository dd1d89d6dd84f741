package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "naturalcheck",
		Short:         "Check whether text reads naturally using an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.envFile, "env-file", "", "Load environment from this file (default .env when present)")
	pf.StringVarP(&flags.profile, "profile", "p", "", "Stored profile id to use")
	pf.StringVar(&flags.endpoint, "endpoint", "", "Chat completion base URL")
	pf.StringVar(&flags.apiKey, "api-key", "", "API key (empty for keyless endpoints)")
	pf.StringVarP(&flags.model, "model", "m", "", "Model id")
	pf.Float64Var(&flags.temperature, "temperature", 0, "Sampling temperature in [0,1]")
	pf.StringVarP(&flags.language, "language", "l", "", "Target language")
	pf.IntVar(&flags.maxAttempts, "max-attempts", 0, "Corrective retries after the first attempt")
	pf.BoolVar(&flags.json, "json", false, "Print JSON output")
	pf.BoolVar(&flags.debug, "debug", false, "Log HTTP traffic (API key redacted)")

	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newProbeCommand(ctx))
	rootCmd.AddCommand(newModelsCommand(ctx))
	rootCmd.AddCommand(newProfileCommand(ctx))
	rootCmd.AddCommand(newReportCommand(ctx))

	return rootCmd
}
