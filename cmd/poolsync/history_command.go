package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"poolsync/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs, or per-source details for one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer store.Close()

			if len(args) == 1 {
				return printRunJobs(cmd, store, args[0])
			}
			return printRuns(cmd, store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

func printRuns(cmd *cobra.Command, store *history.Store, limit int) error {
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		outcome := run.State
		if run.Failure != "" {
			outcome = fmt.Sprintf("%s (%s)", run.State, run.Failure)
		}
		rows = append(rows, []string{
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			outcome,
			yesNo(run.DryRun),
			strconv.Itoa(run.Jobs),
			strconv.Itoa(run.FilesTransferred),
			strconv.Itoa(run.FilesDeleted),
			formatBytes(run.BytesTransferred),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Started", "State", "Dry-run", "Sources", "Transferred", "Deleted", "Bytes"},
		rows, 5, 6, 7, 8))
	return nil
}

func printRunJobs(cmd *cobra.Command, store *history.Store, runID string) error {
	jobs, err := store.JobsForRun(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	out := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintf(out, "No jobs recorded for run %s\n", runID)
		return nil
	}

	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.Source,
			strconv.Itoa(job.ProtectRules),
			strconv.Itoa(job.FilesTransferred),
			strconv.Itoa(job.FilesDeleted),
			formatBytes(job.BytesTransferred),
			job.Elapsed.Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Source", "Protected", "Transferred", "Deleted", "Bytes", "Elapsed"},
		rows, 2, 3, 4, 5, 6))
	return nil
}
