package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"poolsync/internal/config"
	"poolsync/internal/history"
	"poolsync/internal/sequencer"
	"poolsync/internal/services"
	"poolsync/internal/services/rsync"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	store, err := history.Open(&cfg)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(state sequencer.State) *sequencer.RunResult {
	started := time.Now().UTC().Add(-time.Minute)
	return &sequencer.RunResult{
		RunID:      "run-" + string(state),
		DryRun:     false,
		State:      state,
		StartedAt:  started,
		FinishedAt: started.Add(30 * time.Second),
		Jobs: []sequencer.JobResult{
			{
				Source:       "/photos/alice",
				ProtectRules: 4,
				Report:       rsync.Report{FilesTransferred: 3, FilesDeleted: 1, TransferredBytes: 2048},
				Elapsed:      12 * time.Second,
			},
			{
				Source:       "/photos/bob",
				ProtectRules: 6,
				Report:       rsync.Report{FilesTransferred: 2, TransferredBytes: 1024},
				Elapsed:      8 * time.Second,
			},
		},
	}
}

func TestRecordAndListRuns(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.RecordRun(ctx, sampleResult(sequencer.StateDone), nil); err != nil {
		t.Fatalf("RecordRun returned error: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.State != string(sequencer.StateDone) {
		t.Fatalf("state = %q", run.State)
	}
	if run.Jobs != 2 || run.FilesTransferred != 5 || run.FilesDeleted != 1 || run.BytesTransferred != 3072 {
		t.Fatalf("unexpected aggregates: %+v", run)
	}
	if run.Failure != "" || run.ErrorMessage != "" {
		t.Fatalf("successful run carries failure fields: %+v", run)
	}
}

func TestRecordFailedRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	runErr := services.Wrap(services.ErrTransport, "mirroring", "rsync", "transfer failed", errors.New("connection reset"))
	result := sampleResult(sequencer.StateFailed)
	result.Jobs = result.Jobs[:1]
	if err := store.RecordRun(ctx, result, runErr); err != nil {
		t.Fatalf("RecordRun returned error: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if runs[0].Failure != "transport" {
		t.Fatalf("failure = %q, want transport", runs[0].Failure)
	}
	if runs[0].ErrorMessage == "" {
		t.Fatal("expected error message recorded")
	}
}

func TestJobsForRunPreservesOrder(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	result := sampleResult(sequencer.StateDone)
	if err := store.RecordRun(ctx, result, nil); err != nil {
		t.Fatalf("RecordRun returned error: %v", err)
	}

	jobs, err := store.JobsForRun(ctx, result.RunID)
	if err != nil {
		t.Fatalf("JobsForRun returned error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Source != "/photos/alice" || jobs[1].Source != "/photos/bob" {
		t.Fatalf("job order lost: %+v", jobs)
	}
	if jobs[0].Elapsed != 12*time.Second {
		t.Fatalf("elapsed = %v", jobs[0].Elapsed)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	older := sampleResult(sequencer.StateDone)
	older.RunID = "older"
	older.StartedAt = time.Now().UTC().Add(-2 * time.Hour)
	older.FinishedAt = older.StartedAt.Add(time.Minute)

	newer := sampleResult(sequencer.StateDone)
	newer.RunID = "newer"

	if err := store.RecordRun(ctx, older, nil); err != nil {
		t.Fatalf("RecordRun returned error: %v", err)
	}
	if err := store.RecordRun(ctx, newer, nil); err != nil {
		t.Fatalf("RecordRun returned error: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if runs[0].ID != "newer" || runs[1].ID != "older" {
		t.Fatalf("unexpected order: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	first, err := history.Open(&cfg)
	if err != nil {
		t.Fatalf("first Open returned error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := history.Open(&cfg)
	if err != nil {
		t.Fatalf("second Open returned error: %v", err)
	}
	defer second.Close()

	runs, err := second.ListRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("fresh database holds %d runs", len(runs))
	}
}
