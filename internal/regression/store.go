package regression

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lithium-ci/lithium/pkg/log"
	"github.com/pkg/errors"
)

// persistedBaseline is the on-disk shape of a baseline. Durations are
// stored as millisecond floats.
type persistedBaseline struct {
	Component          string    `json:"componentName"`
	AverageRenderTime  float64   `json:"averageRenderTime"`
	AverageMemoryUsage float64   `json:"averageMemoryUsage"`
	SampleCount        int       `json:"sampleCount"`
	LastUpdated        time.Time `json:"lastUpdated"`
	Version            string    `json:"version"`
}

// Store persists baselines as a JSON array at a fixed path.
type Store struct {
	path string
}

// NewStore returns a store persisting at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted baselines. A missing file yields an empty
// set; a corrupt one is logged and discarded rather than aborting.
func (s *Store) Load() []Baseline {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("baseline store read failure", "path", s.path, "error", err)
		}
		return nil
	}

	var persisted []persistedBaseline
	if err := json.Unmarshal(raw, &persisted); err != nil {
		log.Warn("baseline store corrupt, starting empty", "path", s.path, "error", err)
		return nil
	}

	baselines := make([]Baseline, 0, len(persisted))
	for _, p := range persisted {
		baselines = append(baselines, Baseline{
			Component:          p.Component,
			AverageRenderTime:  time.Duration(p.AverageRenderTime * float64(time.Millisecond)),
			AverageMemoryUsage: p.AverageMemoryUsage,
			SampleCount:        p.SampleCount,
			LastUpdated:        p.LastUpdated,
			Version:            p.Version,
		})
	}

	return baselines
}

// Save writes the full baseline set atomically via a temp file rename.
func (s *Store) Save(baselines []Baseline) error {
	persisted := make([]persistedBaseline, 0, len(baselines))
	for _, baseline := range baselines {
		persisted = append(persisted, persistedBaseline{
			Component:          baseline.Component,
			AverageRenderTime:  float64(baseline.AverageRenderTime) / float64(time.Millisecond),
			AverageMemoryUsage: baseline.AverageMemoryUsage,
			SampleCount:        baseline.SampleCount,
			LastUpdated:        baseline.LastUpdated,
			Version:            baseline.Version,
		})
	}
	sort.Slice(persisted, func(i, j int) bool {
		return persisted[i].Component < persisted[j].Component
	})

	raw, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode baselines")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create baseline directory")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return errors.Wrap(err, "failed to write baseline store")
	}

	return errors.Wrap(os.Rename(tmp, s.path), "failed to replace baseline store")
}
