package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSources(); err != nil {
		return err
	}
	if err := c.normalizeDestination(); err != nil {
		return err
	}
	c.normalizeMirror()
	c.normalizePreclean()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSources() error {
	roots := make([]string, 0, len(c.Sources.Roots))
	for _, root := range c.Sources.Roots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("sources.roots: %w", err)
		}
		roots = append(roots, expanded)
	}
	c.Sources.Roots = roots
	return nil
}

func (c *Config) normalizeDestination() error {
	c.Destination.Host = strings.TrimSpace(c.Destination.Host)
	c.Destination.Path = strings.TrimSpace(c.Destination.Path)
	if c.Destination.Host == "" && c.Destination.Path != "" {
		expanded, err := expandPath(c.Destination.Path)
		if err != nil {
			return fmt.Errorf("destination.path: %w", err)
		}
		c.Destination.Path = expanded
	}
	return nil
}

func (c *Config) normalizeMirror() {
	c.Mirror.RsyncBinary = strings.TrimSpace(c.Mirror.RsyncBinary)
	if c.Mirror.RsyncBinary == "" {
		c.Mirror.RsyncBinary = defaultRsyncBinary
	}
	excludes := make([]string, 0, len(c.Mirror.Excludes))
	for _, pattern := range c.Mirror.Excludes {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			excludes = append(excludes, trimmed)
		}
	}
	c.Mirror.Excludes = excludes
}

func (c *Config) normalizePreclean() {
	patterns := make([]string, 0, len(c.Preclean.ExtraPatterns))
	for _, pattern := range c.Preclean.ExtraPatterns {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	c.Preclean.ExtraPatterns = patterns
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
