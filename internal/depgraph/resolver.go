// Package depgraph discovers the local file dependencies of test units
// and maintains a durable map of direct and transitive dependencies.
package depgraph

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var defaultExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// Resolver resolves a unit's import references to concrete file paths.
type Resolver struct {
	scanner    Scanner
	extensions []string
}

// NewResolver returns a Resolver backed by the regex scanner.
func NewResolver() *Resolver {
	return &Resolver{scanner: RegexScanner{}, extensions: defaultExtensions}
}

// WithScanner substitutes the import scanner.
func (r *Resolver) WithScanner(s Scanner) *Resolver {
	if s != nil {
		r.scanner = s
	}
	return r
}

// Direct resolves the unit's own import references to existing files.
// Unresolvable references are skipped; dependency discovery is
// best-effort and never blocks test execution.
func (r *Resolver) Direct(path string) []string {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	dir := filepath.Dir(path)
	deps := []string{}

	for _, ref := range r.scanner.Scan(string(content)) {
		if resolved, ok := r.resolve(dir, ref); ok {
			deps = append(deps, resolved)
		}
	}

	sort.Strings(deps)
	return deps
}

// Transitive resolves the unit's dependencies recursively. A visited
// set guards against circular imports, which otherwise recurse without
// bound.
func (r *Resolver) Transitive(path string) []string {
	visited := map[string]struct{}{Normalize(path): {}}
	var walk func(string)

	deps := []string{}

	walk = func(p string) {
		for _, dep := range r.Direct(p) {
			if _, ok := visited[dep]; ok {
				continue
			}
			visited[dep] = struct{}{}
			deps = append(deps, dep)
			walk(dep)
		}
	}

	walk(path)
	sort.Strings(deps)
	return deps
}

// resolve maps a relative reference to an existing file, trying the
// reference itself, known extensions, and index files.
func (r *Resolver) resolve(dir, ref string) (string, bool) {
	base := filepath.Join(dir, ref)

	candidates := []string{}
	if hasKnownExtension(ref, r.extensions) {
		candidates = append(candidates, base)
	}
	for _, ext := range r.extensions {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range r.extensions {
		candidates = append(candidates, filepath.Join(base, "index"+ext))
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return Normalize(candidate), true
		}
	}

	return "", false
}

func hasKnownExtension(ref string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(ref, ext) {
			return true
		}
	}
	return false
}

// Normalize returns the canonical identity of a path: cleaned and
// slash-separated, so the same file maps to the same cache key on
// every platform.
func Normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
