// Package sequencer coordinates a full mirror run: it validates every source,
// pre-cleans junk, then for each source builds a protection set from all other
// sources and executes exactly one mirror job at a time.
//
// Jobs are strictly sequential. Concurrent jobs against the same destination
// could race one job's deletion pass against another's writes, because
// protection sets are derived from sources rather than from instantaneous
// destination state. The run aborts on the first failure: once a job has
// failed, later jobs cannot trust the destination to be intact.
package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"poolsync/internal/config"
	"poolsync/internal/enumerate"
	"poolsync/internal/logging"
	"poolsync/internal/mirror"
	"poolsync/internal/protection"
	"poolsync/internal/services"
	"poolsync/internal/services/rsync"
)

// State names one phase of a run.
type State string

const (
	StateIdle               State = "idle"
	StateValidating         State = "validating"
	StateBuildingProtection State = "building_protection"
	StateMirroring          State = "mirroring"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

// Executor is the contract the sequencer needs from the mirror layer.
type Executor interface {
	Execute(ctx context.Context, job mirror.Job) (rsync.Report, error)
}

// Cleaner removes junk files from a source tree before enumeration.
type Cleaner interface {
	Clean(root string) (int, error)
}

// JobResult captures the outcome of one source's mirror pass.
type JobResult struct {
	Source       string
	ProtectRules int
	Report       rsync.Report
	Elapsed      time.Duration
}

// RunResult captures the outcome of a full run. On failure it holds the jobs
// that completed before the abort.
type RunResult struct {
	RunID      string
	DryRun     bool
	State      State
	StartedAt  time.Time
	FinishedAt time.Time
	Jobs       []JobResult
}

// Sequencer drives one run at a time through the mirror pipeline.
type Sequencer struct {
	cfg      *config.Config
	executor Executor
	cleaner  Cleaner
	logger   *slog.Logger
	state    State
}

// New constructs a Sequencer. The cleaner may be nil to disable pre-cleaning.
func New(cfg *config.Config, executor Executor, cleaner Cleaner, logger *slog.Logger) *Sequencer {
	return &Sequencer{
		cfg:      cfg,
		executor: executor,
		cleaner:  cleaner,
		logger:   logging.NewComponentLogger(logger, "sequencer"),
		state:    StateIdle,
	}
}

// State returns the current run phase.
func (s *Sequencer) State() State {
	return s.state
}

// Run executes the full pipeline. The returned RunResult is non-nil even on
// failure so callers can record partial outcomes; the error carries the
// taxonomy marker describing why the run aborted.
func (s *Sequencer) Run(ctx context.Context, dryRun bool) (*RunResult, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, s.logger)

	result := &RunResult{
		RunID:     runID,
		DryRun:    dryRun,
		State:     StateIdle,
		StartedAt: time.Now().UTC(),
	}

	roots := s.cfg.Sources.Roots
	logger.Info("run started",
		logging.Int("sources", len(roots)),
		logging.Bool("dry_run", dryRun))

	s.transition(logger, result, StateValidating)
	if err := s.validateSources(roots); err != nil {
		return s.fail(logger, result, err)
	}
	s.precleanSources(logger, roots)

	// The scratch area holding the generated rule files lives exactly as
	// long as the run, on every exit path.
	scratch, err := os.MkdirTemp("", "poolsync-*")
	if err != nil {
		return s.fail(logger, result, services.Wrap(services.ErrProtectionIntegrity, "protection", "scratch",
			"cannot create scratch directory", err))
	}
	defer os.RemoveAll(scratch)

	destination := s.cfg.DestinationSpec()

	for i, root := range roots {
		jobCtx := services.WithSource(ctx, root)

		s.transition(logger, result, StateBuildingProtection)
		set, protectFile, err := s.buildProtection(jobCtx, scratch, roots, i)
		if err != nil {
			return s.fail(logger, result, err)
		}

		s.transition(logger, result, StateMirroring)
		started := time.Now()
		report, err := s.executor.Execute(services.WithStage(jobCtx, string(StateMirroring)), mirror.Job{
			Source:       root,
			Destination:  destination,
			ProtectFile:  protectFile,
			ProtectRules: set.Len(),
			Excludes:     s.cfg.Mirror.Excludes,
			DryRun:       dryRun,
		})
		if err != nil {
			return s.fail(logger, result, err)
		}

		result.Jobs = append(result.Jobs, JobResult{
			Source:       root,
			ProtectRules: set.Len(),
			Report:       report,
			Elapsed:      time.Since(started),
		})
	}

	s.transition(logger, result, StateDone)
	result.FinishedAt = time.Now().UTC()
	logger.Info("run finished",
		logging.Int("jobs", len(result.Jobs)),
		logging.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)))
	return result, nil
}

// validateSources guards the whole run: a missing, unreadable, or empty
// source aborts before any destination mutation. An empty source is treated
// as a configuration error rather than "nothing to do" — an unmounted volume
// must never silently trigger mass deletion downstream.
func (s *Sequencer) validateSources(roots []string) error {
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return services.Wrap(services.ErrSourceUnavailable, string(StateValidating), "stat",
				fmt.Sprintf("source %s is missing", root), err)
		}
		if !info.IsDir() {
			return services.Wrap(services.ErrSourceUnavailable, string(StateValidating), "stat",
				fmt.Sprintf("source %s is not a directory", root), nil)
		}
		empty, err := enumerate.IsEmpty(root)
		if err != nil {
			return services.Wrap(services.ErrSourceUnavailable, string(StateValidating), "enumerate",
				fmt.Sprintf("source %s is unreadable", root), err)
		}
		if empty {
			return services.Wrap(services.ErrSourceUnavailable, string(StateValidating), "enumerate",
				fmt.Sprintf("source %s is empty; refusing to mirror an unmounted or hollow source", root), nil)
		}
	}
	return nil
}

func (s *Sequencer) precleanSources(logger *slog.Logger, roots []string) {
	if s.cleaner == nil {
		return
	}
	for _, root := range roots {
		removed, err := s.cleaner.Clean(root)
		if err != nil {
			logger.Warn("preclean walk failed",
				logging.String(logging.FieldSource, root),
				logging.Error(err))
			continue
		}
		if removed > 0 {
			logger.Info("removed junk files",
				logging.String(logging.FieldSource, root),
				logging.Int("removed", removed))
		}
	}
}

// buildProtection computes the protection set for roots[index] as the union
// of every other source's namespace, from on-disk state at this moment. An
// empty set with more than one source configured is fatal: proceeding would
// turn a protect-aware run into a destructive one.
func (s *Sequencer) buildProtection(ctx context.Context, scratch string, roots []string, index int) (protection.Set, string, error) {
	others := make([]string, 0, len(roots)-1)
	for j, other := range roots {
		if j != index {
			others = append(others, other)
		}
	}

	set, err := protection.Build(others)
	if err != nil {
		return protection.Set{}, "", err
	}
	if set.Empty() && len(roots) > 1 {
		return protection.Set{}, "", services.Wrap(services.ErrProtectionIntegrity, string(StateBuildingProtection), "",
			fmt.Sprintf("protection set for %s is empty with %d sources configured", roots[index], len(roots)), nil)
	}

	logger := logging.WithContext(ctx, s.logger)
	if set.Empty() {
		logger.Info("single source configured; no protection rules needed")
		return set, "", nil
	}

	protectFile, err := set.WriteFile(scratch, fmt.Sprintf("protect-%d.rules", index))
	if err != nil {
		return protection.Set{}, "", err
	}
	logger.Info("protection set built",
		logging.Int("rules", set.Len()),
		logging.Int("other_sources", len(others)))
	return set, protectFile, nil
}

func (s *Sequencer) transition(logger *slog.Logger, result *RunResult, next State) {
	s.state = next
	result.State = next
	logger.Debug("state transition", logging.String("state", string(next)))
}

func (s *Sequencer) fail(logger *slog.Logger, result *RunResult, err error) (*RunResult, error) {
	s.state = StateFailed
	result.State = StateFailed
	result.FinishedAt = time.Now().UTC()
	logger.Error("run aborted",
		logging.String("failure", services.Classify(err)),
		logging.Error(err))
	return result, err
}
