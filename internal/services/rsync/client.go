package rsync

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Job describes one mirror transfer of a single source into the destination.
type Job struct {
	Source             string
	Destination        string
	Excludes           []string
	ProtectFile        string
	DeleteExtraneous   bool
	DryRun             bool
	Checksum           bool
	BandwidthLimitKBps int
	TimeoutSeconds     int
}

// Client defines the transfer behaviour required by the mirror executor.
type Client interface {
	Mirror(ctx context.Context, job Job) (Report, error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *CLI) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// CLI wraps rsync command-line interactions.
type CLI struct {
	binary string
	exec   Executor
}

// New constructs an rsync client.
func New(binary string, opts ...Option) (*CLI, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("rsync binary required")
	}
	client := &CLI{
		binary: binary,
		exec:   commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Mirror executes one transfer and returns the parsed report. The job's
// dry-run flag makes rsync compute the identical plan without touching the
// destination.
func (c *CLI) Mirror(ctx context.Context, job Job) (Report, error) {
	if strings.TrimSpace(job.Source) == "" {
		return Report{}, errors.New("source path required")
	}
	if strings.TrimSpace(job.Destination) == "" {
		return Report{}, errors.New("destination required")
	}

	args := buildArgs(job)
	parser := newReportParser()

	if err := c.exec.Run(ctx, c.binary, args, parser.consume); err != nil {
		return Report{}, fmt.Errorf("rsync mirror: %w", err)
	}
	return parser.report(), nil
}

// buildArgs renders the rsync argument list. Exclude patterns come before the
// protection filter so exclusions apply independently of protection rules.
func buildArgs(job Job) []string {
	args := []string{"--archive", "--itemize-changes", "--stats"}
	if job.DeleteExtraneous {
		args = append(args, "--delete")
	}
	if job.DryRun {
		args = append(args, "--dry-run")
	}
	if job.Checksum {
		args = append(args, "--checksum")
	}
	if job.BandwidthLimitKBps > 0 {
		args = append(args, "--bwlimit="+strconv.Itoa(job.BandwidthLimitKBps))
	}
	if job.TimeoutSeconds > 0 {
		args = append(args, "--timeout="+strconv.Itoa(job.TimeoutSeconds))
	}
	for _, pattern := range job.Excludes {
		args = append(args, "--exclude", pattern)
	}
	if job.ProtectFile != "" {
		args = append(args, "--filter", "merge "+job.ProtectFile)
	}
	args = append(args, ensureTrailingSlash(job.Source), job.Destination)
	return args
}

// ensureTrailingSlash makes rsync transfer the contents of the source rather
// than the source directory itself.
func ensureTrailingSlash(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var stderrTail string

	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if onStdout != nil {
				onStdout(scanner.Text())
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				stderrTail = line
			}
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if stderrTail != "" {
			return fmt.Errorf("%w: %s", err, stderrTail)
		}
		return err
	}
	return nil
}

var _ Client = (*CLI)(nil)
