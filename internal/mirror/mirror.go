// Package mirror executes one delete-synchronizing transfer of a single
// source into the shared destination, honoring exclusions and protection
// rules. One Job is built per source per run and consumed immediately.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"poolsync/internal/config"
	"poolsync/internal/logging"
	"poolsync/internal/protection"
	"poolsync/internal/services"
	"poolsync/internal/services/rsync"
)

// Job carries everything one mirror pass needs. ProtectFile may be empty only
// when ProtectRules is zero (single-source run).
type Job struct {
	Source       string
	Destination  string
	ProtectFile  string
	ProtectRules int
	Excludes     []string
	DryRun       bool
}

// Executor runs mirror jobs against the configured transfer primitive.
type Executor struct {
	cfg    *config.Config
	client rsync.Client
	logger *slog.Logger
}

// NewExecutor constructs an Executor. A nil logger is replaced with a no-op
// logger.
func NewExecutor(cfg *config.Config, client rsync.Client, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:    cfg,
		client: client,
		logger: logging.NewComponentLogger(logger, "mirror"),
	}
}

// Execute validates the job's protection file and runs the transfer. The
// protection check happens before the transfer primitive is invoked: a run
// that cannot prove its protection rules are intact must never start a
// deletion pass. Transfer failures abort the whole run; files already
// transferred remain in place and a rerun is safe.
func (e *Executor) Execute(ctx context.Context, job Job) (rsync.Report, error) {
	if job.ProtectRules > 0 {
		if job.ProtectFile == "" {
			return rsync.Report{}, services.Wrap(services.ErrProtectionIntegrity, "mirroring", "validate rules",
				fmt.Sprintf("no protection file for %d rules", job.ProtectRules), nil)
		}
		if err := protection.ValidateFile(job.ProtectFile, job.ProtectRules); err != nil {
			return rsync.Report{}, err
		}
	}

	logger := logging.WithContext(ctx, e.logger)
	logger.Info("mirror pass started",
		logging.String(logging.FieldSource, job.Source),
		logging.Int("protect_rules", job.ProtectRules),
		logging.Bool("dry_run", job.DryRun))

	started := time.Now()
	report, err := e.client.Mirror(ctx, rsync.Job{
		Source:             job.Source,
		Destination:        job.Destination,
		Excludes:           job.Excludes,
		ProtectFile:        job.ProtectFile,
		DeleteExtraneous:   true,
		DryRun:             job.DryRun,
		Checksum:           e.cfg.Mirror.Checksum,
		BandwidthLimitKBps: e.cfg.Mirror.BandwidthLimitKBps,
		TimeoutSeconds:     e.cfg.Mirror.TimeoutSeconds,
	})
	if err != nil {
		return rsync.Report{}, services.Wrap(services.ErrTransport, "mirroring", "rsync",
			fmt.Sprintf("transfer of %s failed", job.Source), err)
	}

	logger.Info("mirror pass finished",
		logging.String(logging.FieldSource, job.Source),
		logging.Int("files_transferred", report.FilesTransferred),
		logging.Int("files_deleted", report.FilesDeleted),
		logging.Int64("bytes_transferred", report.TransferredBytes),
		logging.Duration("elapsed", time.Since(started)))

	return report, nil
}
