package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lithium-ci/lithium/pkg/log"
)

// persistedEntry is the wire form of an Entry. Durations are stored as
// milliseconds and dependency hashes as sorted [path, hash] pairs so
// the store stays readable by non-Go consumers.
type persistedEntry struct {
	Identity         string           `json:"identity"`
	ContentHash      string           `json:"contentHash"`
	DependencyHashes [][2]string      `json:"dependencyHashes"`
	Outcome          persistedOutcome `json:"outcome"`
	Timestamp        time.Time        `json:"timestamp"`
	ToolVersion      string           `json:"toolVersion"`
	RuntimeVersion   string           `json:"runtimeVersion"`
}

type persistedOutcome struct {
	Status       string  `json:"status"`
	DurationMS   float64 `json:"durationMs"`
	TestCount    int     `json:"testCount"`
	FailureCount int     `json:"failureCount"`
}

type persistedStats struct {
	TotalTests  int64   `json:"totalTests"`
	CachedTests int64   `json:"cachedTests"`
	TimeSavedMS float64 `json:"timeSaved"`
}

type persistedStore struct {
	Entries []persistedEntry `json:"entries"`
	Stats   persistedStats   `json:"stats"`
}

// Store reads and writes the durable result cache file.
type Store struct {
	path string
}

// NewStore returns a store persisting to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted entries and stats. A missing file yields an
// empty cache; a corrupt file resets the cache with a warning.
func (s *Store) Load() ([]Entry, Stats) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, Stats{}
	}

	var persisted persistedStore
	if err := json.Unmarshal(data, &persisted); err != nil {
		log.Warn("result cache store corrupt, resetting", "path", s.path, "error", err)
		return nil, Stats{}
	}

	entries := make([]Entry, 0, len(persisted.Entries))
	for _, pe := range persisted.Entries {
		deps := make(map[string]string, len(pe.DependencyHashes))
		for _, pair := range pe.DependencyHashes {
			deps[pair[0]] = pair[1]
		}

		entries = append(entries, Entry{
			Identity:         pe.Identity,
			ContentHash:      pe.ContentHash,
			DependencyHashes: deps,
			Outcome: Outcome{
				Status:       pe.Outcome.Status,
				Duration:     time.Duration(pe.Outcome.DurationMS * float64(time.Millisecond)),
				TestCount:    pe.Outcome.TestCount,
				FailureCount: pe.Outcome.FailureCount,
			},
			Timestamp:      pe.Timestamp,
			ToolVersion:    pe.ToolVersion,
			RuntimeVersion: pe.RuntimeVersion,
		})
	}

	return entries, Stats{
		TotalTests:  persisted.Stats.TotalTests,
		CachedTests: persisted.Stats.CachedTests,
		TimeSaved:   time.Duration(persisted.Stats.TimeSavedMS * float64(time.Millisecond)),
	}
}

// Save writes the store atomically (temp file, then rename).
func (s *Store) Save(entries []Entry, stats Stats) error {
	persisted := persistedStore{
		Entries: make([]persistedEntry, 0, len(entries)),
		Stats: persistedStats{
			TotalTests:  stats.TotalTests,
			CachedTests: stats.CachedTests,
			TimeSavedMS: float64(stats.TimeSaved) / float64(time.Millisecond),
		},
	}

	for _, entry := range entries {
		pairs := make([][2]string, 0, len(entry.DependencyHashes))
		for dep, hash := range entry.DependencyHashes {
			pairs = append(pairs, [2]string{dep, hash})
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

		persisted.Entries = append(persisted.Entries, persistedEntry{
			Identity:         entry.Identity,
			ContentHash:      entry.ContentHash,
			DependencyHashes: pairs,
			Outcome: persistedOutcome{
				Status:       entry.Outcome.Status,
				DurationMS:   float64(entry.Outcome.Duration) / float64(time.Millisecond),
				TestCount:    entry.Outcome.TestCount,
				FailureCount: entry.Outcome.FailureCount,
			},
			Timestamp:      entry.Timestamp,
			ToolVersion:    entry.ToolVersion,
			RuntimeVersion: entry.RuntimeVersion,
		})
	}

	sort.Slice(persisted.Entries, func(i, j int) bool {
		return persisted.Entries[i].Identity < persisted.Entries[j].Identity
	})

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, s.path)
}

// sortByTimestamp orders entries oldest first.
func sortByTimestamp(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}
