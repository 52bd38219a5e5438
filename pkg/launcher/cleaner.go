package launcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

// WorkspaceCleaner removes stale Python bytecode caches from the trainer
// working directory before a run. Staleness only affects the external
// interpreter's caches, never run correctness, so callers treat failures as
// warnings.
type WorkspaceCleaner struct {
	fileRegexes []*regexp.Regexp
	dirRegexes  []*regexp.Regexp
}

func NewWorkspaceCleaner() *WorkspaceCleaner {
	filePatterns := []string{
		`\.pyc$`,
		`\.pyo$`,
	}

	dirPatterns := []string{
		`^__pycache__$`,
		`^\.pytest_cache$`,
	}

	var fileRegexes []*regexp.Regexp
	for _, pattern := range filePatterns {
		re, err := regexp.Compile(pattern)
		if err == nil {
			fileRegexes = append(fileRegexes, re)
		}
	}

	var dirRegexes []*regexp.Regexp
	for _, pattern := range dirPatterns {
		re, err := regexp.Compile(pattern)
		if err == nil {
			dirRegexes = append(dirRegexes, re)
		}
	}

	return &WorkspaceCleaner{
		fileRegexes: fileRegexes,
		dirRegexes:  dirRegexes,
	}
}

// Clean walks dir and deletes everything that matches a cache pattern. It
// returns the number of entries removed.
func (wc *WorkspaceCleaner) Clean(dir string) (int, error) {
	if _, err := os.Stat(dir); err != nil {
		return 0, fmt.Errorf("workspace not accessible: %w", err)
	}

	removed := 0
	var stale []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}

		name := d.Name()

		if d.IsDir() && wc.matchesDir(name) {
			stale = append(stale, path)
			return filepath.SkipDir
		}

		if !d.IsDir() && wc.matchesFile(name) {
			stale = append(stale, path)
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan workspace: %w", err)
	}

	for _, path := range stale {
		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
	}

	return removed, nil
}

func (wc *WorkspaceCleaner) matchesFile(name string) bool {
	for _, re := range wc.fileRegexes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func (wc *WorkspaceCleaner) matchesDir(name string) bool {
	for _, re := range wc.dirRegexes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// CleanWorkspace is the pre-launch cleanup step.
func CleanWorkspace(dir string, verbose bool) (int, error) {
	cleaner := NewWorkspaceCleaner()

	if verbose {
		fmt.Printf("[DBG] cleaning stale caches under: %s\n", dir)
	}

	removed, err := cleaner.Clean(dir)
	if err != nil {
		return removed, err
	}

	if verbose {
		fmt.Printf("[DBG] removed %d stale cache entries\n", removed)
	}

	return removed, nil
}
