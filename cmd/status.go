package main

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <contact-id>",
	Short: "Show a contact's enrichment status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseContactID(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Service.Status(ctx, id)
		if err != nil {
			return err
		}
		return printOutput(cmd.OutOrStdout(), outputFormat, rec)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show enrichment coverage across all contacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Service.Stats(ctx)
		if err != nil {
			return err
		}
		return printOutput(cmd.OutOrStdout(), outputFormat, stats)
	},
}

var canEnrichCmd = &cobra.Command{
	Use:   "can-enrich <contact-id>",
	Short: "Report whether a contact has enough data to be enriched",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseContactID(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		ok, err := env.Service.CanEnrichContact(ctx, id)
		if err != nil {
			return err
		}
		return printOutput(cmd.OutOrStdout(), outputFormat, map[string]any{"contact_id": id, "can_enrich": ok})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <contact-id>",
	Short: "Reset a contact to pending so it can be enriched again",
	Long:  "Clears the last enrichment error and sets the status back to pending. Attempts are kept. This is the only way to retry a contact marked not_found.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseContactID(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Service.Reset(ctx, id); err != nil {
			return err
		}
		rec, err := env.Service.Status(ctx, id)
		if err != nil {
			return err
		}
		return printOutput(cmd.OutOrStdout(), outputFormat, rec)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, statsCmd, canEnrichCmd, resetCmd)
}
