package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-enricher/internal/enrich"
	"github.com/sells-group/contact-enricher/internal/model"
	"github.com/sells-group/contact-enricher/internal/store"
)

var (
	batchLimit    int
	batchStatuses []string
	batchStrategy string
	batchForce    bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [contact-id...]",
	Short: "Enrich several contacts one after another",
	Long: "Enriches the given contact ids, or when none are given, up to --limit contacts whose " +
		"enrichment status matches --status. A failing contact never stops the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		strategy, err := parseStrategyFlag(batchStrategy)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(args))
		for _, a := range args {
			id, err := parseContactID(a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		if len(ids) == 0 {
			ids, err = selectContacts(ctx, env.Store, batchStatuses, batchLimit)
			if err != nil {
				return err
			}
		}
		if len(ids) == 0 {
			zap.L().Info("no contacts to enrich")
			return nil
		}

		sum := env.Service.EnrichBatchWith(ctx, ids, strategy, enrich.EnrichOptions{Force: batchForce})
		return printOutput(cmd.OutOrStdout(), outputFormat, sum)
	},
}

// selectContacts lists contact ids in the given enrichment statuses.
func selectContacts(ctx context.Context, st store.Store, statuses []string, limit int) ([]int64, error) {
	filter := store.ContactFilter{Limit: limit}
	for _, s := range statuses {
		status := model.EnrichmentStatus(strings.TrimSpace(s))
		if !status.IsValid() {
			return nil, eris.Errorf("unknown enrichment status %q", s)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	ids, err := st.ListContactIDs(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "list contacts")
	}
	return ids, nil
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of contacts to select when no ids are given")
	batchCmd.Flags().StringSliceVar(&batchStatuses, "status", []string{"pending", "failed"}, "enrichment statuses to select when no ids are given")
	batchCmd.Flags().StringVar(&batchStrategy, "strategy", "", "lookup strategy: auto, email, linkedin or name_company (default from config)")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "ignore the freshness window")
	rootCmd.AddCommand(batchCmd)
}
