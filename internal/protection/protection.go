// Package protection builds the do-not-delete rule set that shields every
// other source's files while one source is being mirrored.
//
// A rule set is the union of the relative-path namespaces of all sources
// except the one currently transferring, anchored at the destination root.
// Sets are materialized as rsync merge-filter files of "P /path" lines,
// written fresh into the per-run scratch directory and discarded with it.
package protection

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"poolsync/internal/enumerate"
	"poolsync/internal/services"
)

// Rule exempts one destination-anchored path from deletion.
type Rule struct {
	Path string
}

// Set is an ordered collection of protection rules. Order carries no meaning
// for the transfer primitive but is deterministic for identical inputs.
type Set struct {
	rules []Rule
}

// Build enumerates every tree in others, in order, and emits one rule per
// entry. Duplicate paths across trees are harmless and kept as-is. An empty
// others list yields an empty set; that is the legitimate single-source case,
// and callers enforce the non-empty precondition for multi-source runs.
func Build(others []string) (Set, error) {
	var set Set
	for _, root := range others {
		paths, err := enumerate.List(root)
		if err != nil {
			return Set{}, services.Wrap(services.ErrProtectionIntegrity, "protection", "enumerate",
				fmt.Sprintf("cannot enumerate %s", root), err)
		}
		for _, rel := range paths {
			set.rules = append(set.rules, Rule{Path: "/" + rel})
		}
	}
	return set, nil
}

// Len returns the number of rules in the set.
func (s Set) Len() int {
	return len(s.rules)
}

// Empty reports whether the set holds no rules.
func (s Set) Empty() bool {
	return len(s.rules) == 0
}

// Rules returns a copy of the rule list.
func (s Set) Rules() []Rule {
	return append([]Rule(nil), s.rules...)
}

// WriteFile renders the set as an rsync merge-filter file inside dir and
// returns its path. Each line is a protect directive; rsync spares matching
// destination paths from deletion even when absent from the current source.
func (s Set) WriteFile(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", services.Wrap(services.ErrProtectionIntegrity, "protection", "write rules",
			fmt.Sprintf("cannot create %s", path), err)
	}
	writer := bufio.NewWriter(file)
	for _, rule := range s.rules {
		if _, err := fmt.Fprintf(writer, "P %s\n", rule.Path); err != nil {
			file.Close()
			return "", services.Wrap(services.ErrProtectionIntegrity, "protection", "write rules",
				fmt.Sprintf("cannot write %s", path), err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return "", services.Wrap(services.ErrProtectionIntegrity, "protection", "write rules",
			fmt.Sprintf("cannot flush %s", path), err)
	}
	if err := file.Close(); err != nil {
		return "", services.Wrap(services.ErrProtectionIntegrity, "protection", "write rules",
			fmt.Sprintf("cannot close %s", path), err)
	}
	return path, nil
}

// ValidateFile checks a written rule file against the rule count it was built
// with. A missing, unreadable, or truncated file fails; so does an empty file
// when rules were expected. This is the last guard before a mirror job runs
// with deletion enabled.
func ValidateFile(path string, expectedRules int) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return services.Wrap(services.ErrProtectionIntegrity, "protection", "validate rules",
			fmt.Sprintf("cannot read %s", path), err)
	}
	lines := 0
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	if lines != expectedRules {
		return services.Wrap(services.ErrProtectionIntegrity, "protection", "validate rules",
			fmt.Sprintf("%s holds %d rules, expected %d", path, lines, expectedRules), nil)
	}
	return nil
}
