package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir string `toml:"log_dir"`
}

// Sources contains the ordered list of source trees merged into the
// destination. Order is significant: when two sources carry the same
// relative path, the later source's content survives a full run.
type Sources struct {
	Roots []string `toml:"roots"`
}

// Destination locates the shared mirror target. An empty host means the
// destination path is on the local filesystem; otherwise transfers go over
// SSH to host:path.
type Destination struct {
	Host string `toml:"host"`
	Path string `toml:"path"`
}

// Mirror contains transfer behaviour settings.
type Mirror struct {
	Excludes           []string `toml:"excludes"`
	RsyncBinary        string   `toml:"rsync_binary"`
	BandwidthLimitKBps int      `toml:"bandwidth_limit_kbps"`
	Checksum           bool     `toml:"checksum"`
	TimeoutSeconds     int      `toml:"timeout_seconds"`
}

// Preclean contains junk-removal settings applied to each source before
// enumeration.
type Preclean struct {
	Enabled       bool     `toml:"enabled"`
	ExtraPatterns []string `toml:"extra_patterns"`
}

// History contains run-history persistence settings.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for poolsync.
//
// Configuration sections by subsystem:
//   - Paths: log directory (also holds the lock file and history database)
//   - Sources: ordered source roots merged into the destination
//   - Destination: mirror target host and path
//   - Mirror: rsync binary, excludes, bandwidth, checksum, timeout
//   - Preclean: junk-file removal before enumeration
//   - History: SQLite run-history persistence
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Sources     Sources     `toml:"sources"`
	Destination Destination `toml:"destination"`
	Mirror      Mirror      `toml:"mirror"`
	Preclean    Preclean    `toml:"preclean"`
	History     History     `toml:"history"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/poolsync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. Validation failures are
// reported before any source or destination filesystem access happens.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("poolsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories poolsync itself writes to. Source
// and destination trees are never created here; a missing source must surface
// as a validation failure, not be papered over.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// DestinationSpec renders the destination as an rsync target locator.
func (c *Config) DestinationSpec() string {
	host := strings.TrimSpace(c.Destination.Host)
	if host == "" {
		return c.Destination.Path
	}
	return host + ":" + c.Destination.Path
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
