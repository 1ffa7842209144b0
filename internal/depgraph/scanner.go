package depgraph

import "regexp"

// Scanner extracts local import references from a unit's source text.
// The default implementation is regex based; a syntax-aware parser can
// be substituted without changing the resolver's contract.
type Scanner interface {
	Scan(source string) []string
}

var importPatterns = []*regexp.Regexp{
	// import defaultExport, { named } from './module'
	regexp.MustCompile(`import\s+[\w*{}\s,$]*?from\s+['"](\.[^'"]+)['"]`),
	// side-effect import: import './module'
	regexp.MustCompile(`import\s+['"](\.[^'"]+)['"]`),
	// const mod = require('./module')
	regexp.MustCompile(`require\(\s*['"](\.[^'"]+)['"]\s*\)`),
	// export { named } from './module'
	regexp.MustCompile(`export\s+[\w*{}\s,$]*?from\s+['"](\.[^'"]+)['"]`),
	// dynamic import('./module')
	regexp.MustCompile(`import\(\s*['"](\.[^'"]+)['"]\s*\)`),
}

// RegexScanner matches relative import statements. Only references
// beginning with "." are reported; package imports are not local
// dependencies and never participate in cache invalidation.
type RegexScanner struct{}

func (RegexScanner) Scan(source string) []string {
	seen := map[string]struct{}{}
	refs := []string{}

	for _, pattern := range importPatterns {
		for _, match := range pattern.FindAllStringSubmatch(source, -1) {
			ref := match[1]
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}

	return refs
}
