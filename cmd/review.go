package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ummahlocal/scout-cli/internal/model"
	"github.com/ummahlocal/scout-cli/internal/staging"
)

var stagedCmd = &cobra.Command{
	Use:   "staged",
	Short: "List staged candidates awaiting review",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck
		if err := store.Migrate(ctx); err != nil {
			return err
		}

		filter := staging.StagedFilter{}
		if status, _ := cmd.Flags().GetString("status"); status != "" {
			st, err := model.ParseStagedStatus(status)
			if err != nil {
				return err
			}
			filter.Status = st
		}
		if source, _ := cmd.Flags().GetString("source"); source != "" {
			src, err := model.ParseSource(source)
			if err != nil {
				return err
			}
			filter.Source = src
		}
		filter.City, _ = cmd.Flags().GetString("city")
		filter.MinConfidence, _ = cmd.Flags().GetInt("min-confidence")
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		records, err := store.ListStaged(ctx, filter)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		for _, r := range records {
			e := &r.Establishment
			fmt.Fprintf(out, "%s  %-14s score=%-3d %-30s %s, %s  [%s]\n",
				r.ID, r.Status, e.Confidence, e.Name, e.City, e.State, e.Source)
		}
		fmt.Fprintf(out, "\n%d record(s)\n", len(records))
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <staged-id>",
	Short: "Reject a staged candidate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewTransition(cmd, args[0], (*staging.Engine).Reject)
	},
}

var flagCmd = &cobra.Command{
	Use:   "flag <staged-id>",
	Short: "Flag a staged candidate for a second look",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewTransition(cmd, args[0], (*staging.Engine).Flag)
	},
}

var requeueCmd = &cobra.Command{
	Use:   "requeue <staged-id>",
	Short: "Return a flagged candidate to the review queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewTransition(cmd, args[0], (*staging.Engine).Requeue)
	},
}

func reviewTransition(cmd *cobra.Command, stagedID string, apply func(*staging.Engine, context.Context, string, model.Review) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	reviewer, _ := cmd.Flags().GetString("reviewer")
	note, _ := cmd.Flags().GetString("note")

	if err := apply(staging.NewEngine(store), ctx, stagedID, model.Review{ReviewedBy: reviewer, Note: note}); err != nil {
		return eris.Wrapf(err, "review %s", stagedID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated: %s\n", stagedID)
	return nil
}

func init() {
	stagedCmd.Flags().String("status", "", "filter by review status")
	stagedCmd.Flags().String("source", "", "filter by source")
	stagedCmd.Flags().String("city", "", "filter by city")
	stagedCmd.Flags().Int("min-confidence", 0, "minimum confidence score")
	stagedCmd.Flags().Int("limit", 0, "max records to list")
	stagedCmd.Flags().Bool("json", false, "emit JSON")
	rootCmd.AddCommand(stagedCmd)

	for _, c := range []*cobra.Command{rejectCmd, flagCmd, requeueCmd} {
		c.Flags().String("reviewer", "", "reviewer attribution")
		c.Flags().String("note", "", "review note")
		rootCmd.AddCommand(c)
	}
}
