package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avvvet/naturalcheck/internal/profile"
)

func newProfileCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage stored provider profiles",
	}
	cmd.AddCommand(newProfileSaveCommand(ctx))
	cmd.AddCommand(newProfileListCommand(ctx))
	cmd.AddCommand(newProfileShowCommand(ctx))
	cmd.AddCommand(newProfileDeleteCommand(ctx))
	return cmd
}

func newProfileSaveCommand(ctx *commandContext) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the current provider settings as a profile",
		Long: `Save the current provider settings as a profile.

Settings come from the environment, then --profile, then the provider flags.

Examples:
  naturalcheck profile save openrouter --api-key sk-or-... --model deepseek/deepseek-chat-v3-0324:free
  naturalcheck profile save local --endpoint http://localhost:11434/v1 --model llama3 --api-key ""`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.analysisConfig(cmd)
			if err != nil {
				return err
			}
			store, err := ctx.profileStore()
			if err != nil {
				return err
			}
			saved, err := store.Save(cmd.Context(), profile.FromConfig(id, args[0], cfg))
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, saved.Masked())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s (%s)\n", saved.Name, saved.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Overwrite the profile with this id")
	return cmd
}

func newProfileListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.profileStore()
			if err != nil {
				return err
			}
			profiles, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for i := range profiles {
				profiles[i] = profiles[i].Masked()
			}
			if ctx.flags.json {
				return writeJSON(cmd, profiles)
			}
			if len(profiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No profiles saved")
				return nil
			}
			rows := make([][]string, 0, len(profiles))
			for _, p := range profiles {
				rows = append(rows, []string{p.ID, p.Name, p.Model, p.Endpoint})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Model", "Endpoint"}, rows))
			return nil
		},
	}
}

func newProfileShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.profileStore()
			if err != nil {
				return err
			}
			p, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p = p.Masked()
			if ctx.flags.json {
				return writeJSON(cmd, p)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "ID:           %s\n", p.ID)
			fmt.Fprintf(w, "Name:         %s\n", p.Name)
			fmt.Fprintf(w, "Endpoint:     %s\n", p.Endpoint)
			fmt.Fprintf(w, "Model:        %s\n", p.Model)
			fmt.Fprintf(w, "Temperature:  %.2f\n", p.Temperature)
			fmt.Fprintf(w, "Language:     %s\n", p.Language)
			fmt.Fprintf(w, "Max attempts: %d\n", p.MaxAttempts)
			if p.APIKey == "" {
				fmt.Fprintln(w, "API key:      (none)")
			} else {
				fmt.Fprintf(w, "API key:      %s\n", p.APIKey)
			}
			return nil
		},
	}
}

func newProfileDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.profileStore()
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s\n", args[0])
			return nil
		},
	}
}
