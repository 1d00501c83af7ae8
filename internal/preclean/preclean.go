// Package preclean strips transient OS and editor metadata from source trees
// before enumeration, so junk files never influence protection or deletion
// decisions.
//
// Cleaning is best-effort: a file that cannot be removed is logged and
// skipped, never failing the run.
package preclean

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"poolsync/internal/logging"
)

// junkPatterns match the base names of files that are always safe to delete
// from a source tree.
var junkPatterns = []string{
	".DS_Store",
	"._*",
	"Thumbs.db",
	"desktop.ini",
	"*~",
	".*.swp",
}

// Cleaner removes junk files from directory trees.
type Cleaner struct {
	patterns []string
	logger   *slog.Logger
}

// New constructs a Cleaner with the built-in junk patterns plus any extras.
func New(logger *slog.Logger, extraPatterns ...string) *Cleaner {
	patterns := append([]string(nil), junkPatterns...)
	patterns = append(patterns, extraPatterns...)
	return &Cleaner{
		patterns: patterns,
		logger:   logging.NewComponentLogger(logger, "preclean"),
	}
}

// Clean walks root and removes every file whose base name matches a junk
// pattern. It returns the number of files removed. Individual removal
// failures are non-fatal; only a failure to walk the tree itself is returned.
func (c *Cleaner) Clean(root string) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if !c.matches(entry.Name()) {
			return nil
		}
		if removeErr := os.Remove(path); removeErr != nil {
			c.logger.Warn("could not remove junk file",
				logging.String("path", path),
				logging.Error(removeErr))
			return nil
		}
		c.logger.Debug("removed junk file", logging.String("path", path))
		removed++
		return nil
	})
	if err != nil {
		return removed, err
	}
	return removed, nil
}

func (c *Cleaner) matches(name string) bool {
	for _, pattern := range c.patterns {
		// A malformed pattern only disables itself.
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
