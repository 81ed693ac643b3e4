package main

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-enricher/internal/enrich"
	"github.com/sells-group/contact-enricher/internal/provider"
)

var (
	enrichStrategy string
	enrichForce    bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <contact-id>",
	Short: "Enrich a single contact",
	Long: "Looks the contact up with the chosen strategy and fills its empty fields. " +
		"Contacts marked not_found are never looked up again until reset; contacts enriched in the " +
		"last freshness window are answered from stored data unless --force is given.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := parseContactID(args[0])
		if err != nil {
			return err
		}
		strategy, err := parseStrategyFlag(enrichStrategy)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Service.EnrichWith(ctx, id, strategy, enrich.EnrichOptions{Force: enrichForce})
		if err != nil {
			zap.L().Debug("enrich failed", zap.Int64("contact_id", id), zap.String("kind", string(enrich.Kind(err))))
			return err
		}
		return printOutput(cmd.OutOrStdout(), outputFormat, out)
	},
}

func parseContactID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, eris.Errorf("invalid contact id %q", s)
	}
	return id, nil
}

// parseStrategyFlag leaves an empty flag empty so the service applies the
// configured default.
func parseStrategyFlag(s string) (provider.Strategy, error) {
	if s == "" {
		return "", nil
	}
	return provider.ParseStrategy(s)
}

func init() {
	enrichCmd.Flags().StringVar(&enrichStrategy, "strategy", "", "lookup strategy: auto, email, linkedin or name_company (default from config)")
	enrichCmd.Flags().BoolVar(&enrichForce, "force", false, "ignore the freshness window and look the contact up again")
	rootCmd.AddCommand(enrichCmd)
}
