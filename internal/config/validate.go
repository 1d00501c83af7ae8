package config

import (
	"errors"
	"fmt"

	"poolsync/internal/services"
)

// Validate ensures the configuration is usable. It runs before any source or
// destination I/O so a broken configuration can never mutate the destination.
// Failures carry the configuration marker so downstream classification and
// run history report them as configuration errors.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateSources,
		c.validateDestination,
		c.validateMirror,
		c.validateLogging,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return services.Wrap(services.ErrConfiguration, "", "validate", "", err)
		}
	}
	return nil
}

func (c *Config) validateSources() error {
	if len(c.Sources.Roots) == 0 {
		return errors.New("sources.roots must list at least one source directory")
	}
	seen := make(map[string]struct{}, len(c.Sources.Roots))
	for _, root := range c.Sources.Roots {
		if _, ok := seen[root]; ok {
			return fmt.Errorf("sources.roots lists %q more than once", root)
		}
		seen[root] = struct{}{}
	}
	return nil
}

func (c *Config) validateDestination() error {
	if c.Destination.Path == "" {
		return errors.New("destination.path must be set")
	}
	for _, root := range c.Sources.Roots {
		if c.Destination.Host == "" && root == c.Destination.Path {
			return fmt.Errorf("destination.path %q is also listed as a source", root)
		}
	}
	return nil
}

func (c *Config) validateMirror() error {
	if c.Mirror.BandwidthLimitKBps < 0 {
		return errors.New("mirror.bandwidth_limit_kbps must not be negative")
	}
	if c.Mirror.TimeoutSeconds < 0 {
		return errors.New("mirror.timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
