package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"poolsync/internal/config"
	"poolsync/internal/history"
	"poolsync/internal/logging"
	"poolsync/internal/mirror"
	"poolsync/internal/preclean"
	"poolsync/internal/sequencer"
	"poolsync/internal/services/rsync"
)

const (
	ansiReset = "\x1b[0m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mirror every configured source into the destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			lockPath := filepath.Join(cfg.Paths.LogDir, "poolsync.lock")
			lock := flock.New(lockPath)
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another poolsync run is already in progress (lock %s)", lockPath)
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					logger.Warn("release run lock", logging.Error(err))
				}
			}()

			client, err := rsync.New(cfg.Mirror.RsyncBinary)
			if err != nil {
				return fmt.Errorf("init rsync client: %w", err)
			}
			executor := mirror.NewExecutor(cfg, client, logger)

			var cleaner sequencer.Cleaner
			if cfg.Preclean.Enabled {
				cleaner = preclean.New(logger, cfg.Preclean.ExtraPatterns...)
			}

			seq := sequencer.New(cfg, executor, cleaner, logger)
			result, runErr := seq.Run(signalCtx, dryRun)

			if result != nil && cfg.History.Enabled {
				recordRun(cmd.Context(), cfg, logger, result, runErr)
			}
			if result != nil {
				printRunSummary(cmd.OutOrStdout(), result)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what each mirror pass would change without modifying the destination")
	return cmd
}

// recordRun is best-effort: a broken history database must not turn a
// completed run into a failure.
func recordRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, result *sequencer.RunResult, runErr error) {
	store, err := history.Open(cfg)
	if err != nil {
		logger.Warn("open history store", logging.Error(err))
		return
	}
	defer store.Close()
	if err := store.RecordRun(ctx, result, runErr); err != nil {
		logger.Warn("record run history", logging.Error(err))
	}
}

func printRunSummary(out io.Writer, result *sequencer.RunResult) {
	colorize := shouldColorize(out)

	state := string(result.State)
	if colorize {
		switch result.State {
		case sequencer.StateDone:
			state = ansiGreen + state + ansiReset
		case sequencer.StateFailed:
			state = ansiRed + state + ansiReset
		}
	}

	fmt.Fprintf(out, "Run %s finished in %s (state: %s, dry-run: %s)\n",
		result.RunID,
		result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond),
		state,
		yesNo(result.DryRun))

	if len(result.Jobs) == 0 {
		return
	}

	rows := make([][]string, 0, len(result.Jobs))
	for _, job := range result.Jobs {
		rows = append(rows, []string{
			job.Source,
			strconv.Itoa(job.ProtectRules),
			strconv.Itoa(job.Report.FilesTransferred),
			strconv.Itoa(job.Report.FilesDeleted),
			formatBytes(job.Report.TransferredBytes),
			job.Elapsed.Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Source", "Protected", "Transferred", "Deleted", "Bytes", "Elapsed"},
		rows, 2, 3, 4, 5, 6))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for value := n / unit; value >= unit; value /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
