// Package enumerate lists every filesystem entry below a root directory as
// slash-separated paths relative to that root.
//
// Symlinks are reported as themselves and never followed, so a link cycle
// inside a source cannot hang a run. The root itself is not reported.
package enumerate

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// WalkFunc receives one relative path per reachable entry.
type WalkFunc func(rel string, entry fs.DirEntry) error

// Walk streams every file and directory below root in lexical order. Any I/O
// error (missing root, permission denied) aborts the walk and propagates to
// the caller; a partial enumeration must never be mistaken for a complete one.
func Walk(root string, fn WalkFunc) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("enumerate %s: %w", path, err)
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		return fn(filepath.ToSlash(rel), entry)
	})
}

// List collects the full enumeration of root. The result is in lexical order
// and therefore deterministic for identical on-disk state.
func List(root string) ([]string, error) {
	var paths []string
	err := Walk(root, func(rel string, _ fs.DirEntry) error {
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// IsEmpty reports whether root contains no entries at all.
func IsEmpty(root string) (bool, error) {
	empty := true
	err := Walk(root, func(string, fs.DirEntry) error {
		empty = false
		return filepath.SkipAll
	})
	if err != nil {
		return false, err
	}
	return empty, nil
}
