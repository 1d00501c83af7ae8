package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"poolsync/internal/logging"
	"poolsync/internal/services"
)

func TestNewConsoleWritesToFile(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "console.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("mirror pass finished", logging.Int("files", 4))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "mirror pass finished") {
		t.Fatalf("expected message in log output, got %q", content)
	}
	if !strings.Contains(string(content), "files=4") {
		t.Fatalf("expected attribute in log output, got %q", content)
	}
}

func TestNewJSONFormat(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "json.log")

	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("run started")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"run started"`) {
		t.Fatalf("expected JSON message field, got %q", content)
	}
	if !strings.Contains(string(content), `"level":"info"`) {
		t.Fatalf("expected lowercase level field, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestDebugLevelFiltered(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "filtered.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("should not appear")
	logger.Info("should appear")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "should not appear") {
		t.Fatalf("debug line leaked into info-level log: %q", content)
	}
	if !strings.Contains(string(content), "should appear") {
		t.Fatalf("info line missing from log: %q", content)
	}
}

func TestWithContextAddsRunFields(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "context.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRunID(context.Background(), "run-42")
	ctx = services.WithStage(ctx, "mirroring")
	ctx = services.WithSource(ctx, "/photos/alice")

	logging.WithContext(ctx, logger).Info("job started")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{"run_id=run-42", "stage=mirroring", "source=/photos/alice"} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("expected %q in log output, got %q", want, content)
		}
	}
}

func TestNewComponentLoggerNilBase(t *testing.T) {
	logger := logging.NewComponentLogger(nil, "sequencer")
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("ignored")
}
