// Package cache is the dependency-aware test result cache. A cached
// outcome is reused only while the unit's own fingerprint, every
// recorded dependency fingerprint, and the execution environment all
// still match; any ambiguity fails open to a miss.
package cache

import (
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/lithium-ci/lithium/internal/depgraph"
	"github.com/lithium-ci/lithium/internal/fingerprint"
	"github.com/lithium-ci/lithium/internal/metrics"
	"github.com/lithium-ci/lithium/pkg/log"
)

const (
	defaultMaxEntries = 1000
	defaultMaxAge     = 7 * 24 * time.Hour

	resultsFile = "results.json"
	graphFile   = "graph.json"
)

// Outcome is the stored result of one test unit execution.
type Outcome struct {
	Status       string        `json:"status"`
	Duration     time.Duration `json:"duration"`
	TestCount    int           `json:"testCount"`
	FailureCount int           `json:"failureCount"`
}

// Entry pairs a test unit's fingerprints with its last outcome.
type Entry struct {
	Identity         string
	ContentHash      string
	DependencyHashes map[string]string
	Outcome          Outcome
	Timestamp        time.Time
	ToolVersion      string
	RuntimeVersion   string
}

// Environment tags cache entries with the tool and runtime identity
// they were produced under. Entries from a different environment never
// hit.
type Environment struct {
	ToolVersion    string `json:"toolVersion"`
	RuntimeVersion string `json:"runtimeVersion"`
}

// CurrentEnvironment returns the environment tag for this process.
func CurrentEnvironment(toolVersion string) Environment {
	return Environment{
		ToolVersion:    toolVersion,
		RuntimeVersion: runtime.Version(),
	}
}

// Stats aggregates cache effectiveness counters.
type Stats struct {
	TotalTests  int64         `json:"totalTests"`
	CachedTests int64         `json:"cachedTests"`
	TimeSaved   time.Duration `json:"timeSaved"`
}

// Config parameterizes a Cache.
type Config struct {
	Dir         string
	MaxEntries  int
	MaxAge      time.Duration
	Environment Environment
}

// Cache is the in-memory authority over cached results, persisted
// best-effort to a durable JSON store. A single writer per process is
// assumed; all mutation is serialized by the cache's mutex.
type Cache struct {
	mu       sync.Mutex
	cfg      Config
	entries  map[string]*Entry
	stats    Stats
	resolver *depgraph.Resolver
	graph    *depgraph.Store
	store    *Store
	now      func() time.Time
}

// New loads or creates a cache rooted at cfg.Dir.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultMaxAge
	}

	c := &Cache{
		cfg:      cfg,
		entries:  map[string]*Entry{},
		resolver: depgraph.NewResolver(),
		graph:    depgraph.NewStore(filepath.Join(cfg.Dir, graphFile)),
		store:    NewStore(filepath.Join(cfg.Dir, resultsFile)),
		now:      time.Now,
	}

	entries, stats := c.store.Load()
	for _, entry := range entries {
		e := entry
		c.entries[e.Identity] = &e
	}
	c.stats = stats

	return c
}

// WithResolver substitutes the dependency resolver.
func (c *Cache) WithResolver(r *depgraph.Resolver) *Cache {
	if r != nil {
		c.resolver = r
	}
	return c
}

// GetCachedResult reports whether the unit's cached outcome is still
// valid. Every invalidation path deletes the stale entry and reports a
// miss; filesystem errors count as missing files.
func (c *Cache) GetCachedResult(path string) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalTests++

	identity := depgraph.Normalize(path)
	entry, ok := c.entries[identity]
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues("absent").Inc()
		return Outcome{}, false
	}

	if c.now().Sub(entry.Timestamp) > c.cfg.MaxAge {
		c.evict(identity, "expired")
		return Outcome{}, false
	}

	current, err := fingerprint.Hash(path)
	if err != nil || current != entry.ContentHash {
		c.evict(identity, "content_changed")
		return Outcome{}, false
	}

	for dep, stored := range entry.DependencyHashes {
		depHash, err := fingerprint.Hash(dep)
		if err != nil || depHash != stored {
			c.evict(identity, "dependency_changed")
			return Outcome{}, false
		}
	}

	if entry.ToolVersion != c.cfg.Environment.ToolVersion ||
		entry.RuntimeVersion != c.cfg.Environment.RuntimeVersion {
		c.evict(identity, "environment_changed")
		return Outcome{}, false
	}

	c.stats.CachedTests++
	c.stats.TimeSaved += entry.Outcome.Duration
	metrics.CacheHitsTotal.Inc()
	metrics.CacheTimeSavedSeconds.Add(entry.Outcome.Duration.Seconds())

	return entry.Outcome, true
}

// CacheResult stores the unit's outcome keyed by its current
// fingerprints. Dependencies come from the explicit list when supplied,
// otherwise from the resolver; dependencies that cannot be fingerprinted
// are skipped. The dependency graph node is refreshed and both stores
// persisted best-effort.
func (c *Cache) CacheResult(path string, outcome Outcome, explicitDeps ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	identity := depgraph.Normalize(path)

	contentHash, err := fingerprint.Hash(path)
	if err != nil {
		log.Warn("cannot fingerprint unit, not caching", "unit", identity, "error", err)
		return
	}

	direct := explicitDeps
	if len(direct) == 0 {
		direct = c.resolver.Direct(path)
	}

	depHashes := make(map[string]string, len(direct))
	for _, dep := range direct {
		hash, err := fingerprint.Hash(dep)
		if err != nil {
			continue
		}
		depHashes[depgraph.Normalize(dep)] = hash
	}

	c.entries[identity] = &Entry{
		Identity:         identity,
		ContentHash:      contentHash,
		DependencyHashes: depHashes,
		Outcome:          outcome,
		Timestamp:        c.now(),
		ToolVersion:      c.cfg.Environment.ToolVersion,
		RuntimeVersion:   c.cfg.Environment.RuntimeVersion,
	}

	c.graph.Update(identity, normalizeAll(direct), c.resolver.Transitive(path))

	c.cleanup()
	c.persist()
}

// InvalidateChangedFiles deletes every entry whose identity matches a
// changed path or whose dependency map records it. Shared dependencies
// may invalidate many units at once. Returns the number of entries
// invalidated.
func (c *Cache) InvalidateChangedFiles(paths ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	invalidated := 0
	for _, path := range paths {
		identity := depgraph.Normalize(path)

		for key, entry := range c.entries {
			if key == identity {
				delete(c.entries, key)
				c.graph.Delete(key)
				invalidated++
				continue
			}
			if _, ok := entry.DependencyHashes[identity]; ok {
				delete(c.entries, key)
				invalidated++
			}
		}
	}

	if invalidated > 0 {
		metrics.CacheInvalidationsTotal.Add(float64(invalidated))
		c.persist()
	}

	return invalidated
}

// Stats returns a copy of the effectiveness counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// evict removes a stale entry after a failed validation. Callers hold
// the lock.
func (c *Cache) evict(identity, reason string) {
	delete(c.entries, identity)
	c.graph.Delete(identity)
	metrics.CacheMissesTotal.WithLabelValues(reason).Inc()
	c.persist()
}

// cleanup prunes expired entries, then evicts oldest-by-insertion
// entries beyond the configured maximum. Eviction is pure recency, not
// frequency-aware. Callers hold the lock.
func (c *Cache) cleanup() {
	now := c.now()
	for identity, entry := range c.entries {
		if now.Sub(entry.Timestamp) > c.cfg.MaxAge {
			delete(c.entries, identity)
			c.graph.Delete(identity)
			metrics.CacheEvictionsTotal.Inc()
		}
	}

	excess := len(c.entries) - c.cfg.MaxEntries
	if excess <= 0 {
		return
	}

	oldest := make([]*Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		oldest = append(oldest, entry)
	}
	sortByTimestamp(oldest)

	for _, entry := range oldest[:excess] {
		delete(c.entries, entry.Identity)
		c.graph.Delete(entry.Identity)
		metrics.CacheEvictionsTotal.Inc()
	}
}

// persist writes both durable stores. Failures are logged and
// swallowed; the in-memory state stays authoritative. Callers hold the
// lock.
func (c *Cache) persist() {
	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, *entry)
	}

	if err := c.store.Save(entries, c.stats); err != nil {
		log.Warn("cache store persistence failure", "error", err)
	}
	if err := c.graph.Save(); err != nil {
		log.Warn("dependency graph persistence failure", "error", err)
	}
}

func normalizeAll(paths []string) []string {
	normalized := make([]string, 0, len(paths))
	for _, path := range paths {
		normalized = append(normalized, depgraph.Normalize(path))
	}
	return normalized
}
