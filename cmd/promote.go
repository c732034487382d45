package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ummahlocal/scout-cli/internal/model"
	"github.com/ummahlocal/scout-cli/internal/staging"
)

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Publish approved candidates to the directory",
	Long: `Promote staged records into published businesses.

With --staged-id a single record is promoted. With --all every pending
record at or above --min-confidence is attempted. A record that collides
with an already published business is reported as a conflict and left in
the review queue.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "promote"))

		stagedID, _ := cmd.Flags().GetString("staged-id")
		all, _ := cmd.Flags().GetBool("all")
		minConfidence, _ := cmd.Flags().GetInt("min-confidence")
		reviewer, _ := cmd.Flags().GetString("reviewer")

		if (stagedID == "" && !all) || (stagedID != "" && all) {
			return eris.New("exactly one of --staged-id or --all is required")
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		engine := staging.NewEngine(store)

		var ids []string
		if stagedID != "" {
			ids = []string{stagedID}
		} else {
			records, err := store.ListStaged(ctx, staging.StagedFilter{
				Status:        model.StatusPendingReview,
				MinConfidence: minConfidence,
			})
			if err != nil {
				return err
			}
			for _, r := range records {
				ids = append(ids, r.ID)
			}
		}

		out := cmd.OutOrStdout()
		var promoted, conflicts, failed int
		for _, id := range ids {
			result, err := engine.Promote(ctx, id, reviewer)
			if err != nil {
				failed++
				log.Error("promotion failed", zap.String("staged_id", id), zap.Error(err))
				continue
			}
			if result.Conflict != nil {
				conflicts++
				fmt.Fprintf(out, "conflict: %s already published as business %s (%s match)\n",
					id, result.Conflict.MatchedBusinessID, result.Conflict.Rule)
				continue
			}
			promoted++
			fmt.Fprintf(out, "promoted: %s -> /biz/%s\n", id, result.Business.Slug)
		}

		fmt.Fprintf(out, "\npromoted: %d  conflicts: %d  failed: %d\n", promoted, conflicts, failed)
		if failed > 0 && promoted == 0 && conflicts == 0 {
			return eris.New("all promotions failed")
		}
		return nil
	},
}

func init() {
	promoteCmd.Flags().String("staged-id", "", "single staged record to promote")
	promoteCmd.Flags().Bool("all", false, "promote every pending record above --min-confidence")
	promoteCmd.Flags().Int("min-confidence", 40, "minimum confidence score for --all")
	promoteCmd.Flags().String("reviewer", "", "reviewer attribution recorded on the record")
	rootCmd.AddCommand(promoteCmd)
}
