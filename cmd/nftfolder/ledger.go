package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cwygoda/nftfolder/internal/adapter/sqlite"
	"github.com/cwygoda/nftfolder/internal/domain"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(ctx context.Context, runs *domain.RunService) error {
				return a.history(ctx, runs, limit)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	return cmd
}

func newFailuresCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "failures [run-id]",
		Short: "List the failed records of a run (default: the latest run)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var runID string
			if len(args) == 1 {
				runID = args[0]
			}
			return a.withLedger(cmd.Context(), func(ctx context.Context, runs *domain.RunService) error {
				return a.failures(ctx, runs, runID)
			})
		},
	}
}

func (a *app) withLedger(ctx context.Context, fn func(context.Context, *domain.RunService) error) error {
	repo, err := sqlite.New(a.cfg.DBPath)
	if err != nil {
		return withCode(exitSetup, fmt.Errorf("open ledger: %w", err))
	}
	defer repo.Close()
	return fn(ctx, domain.NewRunService(repo))
}

func (a *app) history(ctx context.Context, runs *domain.RunService, limit int) error {
	list, err := runs.History(ctx, limit)
	if err != nil {
		return withCode(exitSetup, err)
	}
	if len(list) == 0 {
		fmt.Fprintln(a.stdout, "no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tOWNER\tDISCOVERED\tCOMPLETED\tFAILED\tSTARTED")
	for _, run := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.ID, run.Status, run.Owner, run.Discovered, run.Completed, run.Failed,
			humanize.RelTime(run.StartedAt, time.Now(), "ago", "from now"),
		)
	}
	return tw.Flush()
}

func (a *app) failures(ctx context.Context, runs *domain.RunService, runID string) error {
	var run *domain.Run
	var err error
	if runID == "" {
		run, err = runs.Latest(ctx)
	} else {
		run, err = runs.Get(ctx, runID)
	}
	if errors.Is(err, domain.ErrRunNotFound) {
		return withCode(exitUsage, err)
	}
	if err != nil {
		return withCode(exitSetup, err)
	}

	list, err := runs.Failures(ctx, run.ID)
	if err != nil {
		return withCode(exitSetup, err)
	}

	fmt.Fprintf(a.stdout, "run %s (%s): %d failed\n", run.ID, run.Status, len(list))
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, rec := range list {
		fmt.Fprintf(tw, "  %s\t%s\n", rec.Name, rec.Error)
	}
	return tw.Flush()
}
