package mirror_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"poolsync/internal/config"
	"poolsync/internal/mirror"
	"poolsync/internal/services"
	"poolsync/internal/services/rsync"
)

type fakeClient struct {
	jobs   []rsync.Job
	report rsync.Report
	err    error
}

func (f *fakeClient) Mirror(ctx context.Context, job rsync.Job) (rsync.Report, error) {
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return rsync.Report{}, f.err
	}
	return f.report, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Mirror.Checksum = true
	cfg.Mirror.BandwidthLimitKBps = 1024
	return &cfg
}

func writeRules(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "protect.rules")
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestExecutePassesJobThrough(t *testing.T) {
	client := &fakeClient{report: rsync.Report{FilesTransferred: 3}}
	executor := mirror.NewExecutor(testConfig(), client, nil)

	rules := writeRules(t, "P /Events", "P /Events/4.jpg")
	report, err := executor.Execute(context.Background(), mirror.Job{
		Source:       "/photos/alice",
		Destination:  "backup:/srv/pool",
		ProtectFile:  rules,
		ProtectRules: 2,
		Excludes:     []string{"/.*"},
		DryRun:       true,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if report.FilesTransferred != 3 {
		t.Fatalf("report not passed through: %+v", report)
	}

	if len(client.jobs) != 1 {
		t.Fatalf("expected one transfer, got %d", len(client.jobs))
	}
	job := client.jobs[0]
	if !job.DeleteExtraneous {
		t.Fatal("mirror must enable delete-synchronization")
	}
	if !job.DryRun {
		t.Fatal("dry-run flag lost")
	}
	if !job.Checksum || job.BandwidthLimitKBps != 1024 {
		t.Fatalf("mirror settings not applied: %+v", job)
	}
	if job.ProtectFile != rules {
		t.Fatalf("protect file = %q, want %q", job.ProtectFile, rules)
	}
	if !slices.Equal(job.Excludes, []string{"/.*"}) {
		t.Fatalf("excludes = %v", job.Excludes)
	}
}

func TestExecuteRejectsMissingProtectFile(t *testing.T) {
	client := &fakeClient{}
	executor := mirror.NewExecutor(testConfig(), client, nil)

	_, err := executor.Execute(context.Background(), mirror.Job{
		Source:       "/photos/alice",
		Destination:  "/srv/pool",
		ProtectRules: 5,
	})
	if !errors.Is(err, services.ErrProtectionIntegrity) {
		t.Fatalf("expected protection integrity error, got %v", err)
	}
	if len(client.jobs) != 0 {
		t.Fatal("transfer must not run without validated protection rules")
	}
}

func TestExecuteRejectsTruncatedProtectFile(t *testing.T) {
	client := &fakeClient{}
	executor := mirror.NewExecutor(testConfig(), client, nil)

	rules := writeRules(t, "P /only-one")
	_, err := executor.Execute(context.Background(), mirror.Job{
		Source:       "/photos/alice",
		Destination:  "/srv/pool",
		ProtectFile:  rules,
		ProtectRules: 3,
	})
	if !errors.Is(err, services.ErrProtectionIntegrity) {
		t.Fatalf("expected protection integrity error, got %v", err)
	}
	if len(client.jobs) != 0 {
		t.Fatal("transfer must not run with a truncated protection file")
	}
}

func TestExecuteAllowsEmptyProtectionForSingleSource(t *testing.T) {
	client := &fakeClient{}
	executor := mirror.NewExecutor(testConfig(), client, nil)

	_, err := executor.Execute(context.Background(), mirror.Job{
		Source:      "/photos/alice",
		Destination: "/srv/pool",
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(client.jobs) != 1 {
		t.Fatal("expected transfer to run")
	}
	if client.jobs[0].ProtectFile != "" {
		t.Fatalf("unexpected protect file %q", client.jobs[0].ProtectFile)
	}
}

func TestExecuteWrapsTransportFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("connection reset")}
	executor := mirror.NewExecutor(testConfig(), client, nil)

	_, err := executor.Execute(context.Background(), mirror.Job{
		Source:      "/photos/alice",
		Destination: "/srv/pool",
	})
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
