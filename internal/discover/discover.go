// Package discover walks a source tree and finds test files by glob.
package discover

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

var skippedDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	"dist":         {},
	"build":        {},
	"coverage":     {},
}

// Finder locates test files under a root directory.
type Finder struct {
	root  string
	globs []string
}

// NewFinder returns a finder matching the given doublestar globs,
// evaluated against paths relative to root.
func NewFinder(root string, globs []string) *Finder {
	cleaned := make([]string, 0, len(globs))
	for _, pattern := range globs {
		pattern = strings.TrimSpace(pattern)
		if pattern != "" {
			cleaned = append(cleaned, pattern)
		}
	}

	return &Finder{root: root, globs: cleaned}
}

// Find walks the tree and returns matching file paths, sorted and
// relative to the root. Dependency and build output directories are
// skipped.
func (f *Finder) Find() ([]string, error) {
	var found []string

	err := filepath.WalkDir(f.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == f.root {
				return err
			}
			return nil
		}

		if entry.IsDir() {
			if _, skip := skippedDirs[entry.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if f.matches(rel) {
			found = append(found, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", f.root)
	}

	sort.Strings(found)
	return found, nil
}

func (f *Finder) matches(rel string) bool {
	for _, pattern := range f.globs {
		match, err := doublestar.PathMatch(pattern, rel)
		if err != nil {
			continue
		}
		if match {
			return true
		}
	}
	return false
}
