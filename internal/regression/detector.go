// Package regression maintains per-component performance baselines and
// classifies new measurements against them with severity tiers.
package regression

import (
	"sync"
	"time"

	"github.com/lithium-ci/lithium/internal/metrics"
	"github.com/lithium-ci/lithium/pkg/log"
	"github.com/pkg/errors"
)

const (
	renderThreshold    = 1.2
	memoryThreshold    = 1.5
	minBaselineSamples = 10
	pendingCap         = 50
	recentCap          = 100
)

// AlertType enumerates regression alert categories.
type AlertType string

const (
	AlertRenderTime       AlertType = "render_time"
	AlertMemoryUsage      AlertType = "memory_usage"
	AlertCachePerformance AlertType = "cache_performance"
)

// Severity tiers an alert by how far it exceeds the threshold.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Measurement is one performance observation for a component.
type Measurement struct {
	Component       string        `json:"component"`
	RenderTime      time.Duration `json:"renderTime"`
	MemoryUsage     float64       `json:"memoryUsage"`
	CacheHitRate    float64       `json:"cacheHitRate"`
	MinCacheHitRate float64       `json:"minCacheHitRate,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
}

// Baseline is the stored historical average for a component. It is
// overwritten, never merged, on each update.
type Baseline struct {
	Component          string        `json:"componentName"`
	AverageRenderTime  time.Duration `json:"averageRenderTime"`
	AverageMemoryUsage float64       `json:"averageMemoryUsage"`
	SampleCount        int           `json:"sampleCount"`
	LastUpdated        time.Time     `json:"lastUpdated"`
	Version            string        `json:"version"`
}

// Alert is a derived regression finding; it is never persisted.
type Alert struct {
	Type        AlertType `json:"type"`
	Severity    Severity  `json:"severity"`
	Component   string    `json:"component"`
	Current     float64   `json:"current"`
	Baseline    float64   `json:"baseline"`
	Degradation float64   `json:"degradation"`
	Timestamp   time.Time `json:"timestamp"`
}

// Summary counts alerts per severity.
type Summary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Report is the regression payload served to dashboards.
type Report struct {
	Regressions []Alert `json:"regressions"`
	Summary     Summary `json:"summary"`
}

// Detector owns baselines and pending samples for components that do
// not have one yet.
type Detector struct {
	mu        sync.Mutex
	baselines map[string]Baseline
	pending   map[string][]Measurement
	recent    []Alert
	version   string
	store     *Store
	now       func() time.Time
}

// NewDetector returns a detector tagging new baselines with version.
func NewDetector(version string) *Detector {
	return &Detector{
		baselines: map[string]Baseline{},
		pending:   map[string][]Measurement{},
		version:   version,
		now:       time.Now,
	}
}

// WithStore attaches a durable baseline store and loads its contents.
func (d *Detector) WithStore(store *Store) *Detector {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.store = store
	for _, baseline := range store.Load() {
		d.baselines[baseline.Component] = baseline
	}

	return d
}

// UpdateBaseline overwrites the component's baseline with the
// arithmetic mean of the supplied results. At least 10 results are
// required; baselines built on fewer samples are too noisy to compare
// against.
func (d *Detector) UpdateBaseline(component string, results []Measurement) error {
	if len(results) < minBaselineSamples {
		return errors.Errorf(
			"baseline for %s requires at least %d results, got %d",
			component, minBaselineSamples, len(results),
		)
	}

	var renderTotal time.Duration
	var memoryTotal float64
	for _, result := range results {
		renderTotal += result.RenderTime
		memoryTotal += result.MemoryUsage
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.baselines[component] = Baseline{
		Component:          component,
		AverageRenderTime:  renderTotal / time.Duration(len(results)),
		AverageMemoryUsage: memoryTotal / float64(len(results)),
		SampleCount:        len(results),
		LastUpdated:        d.now(),
		Version:            d.version,
	}
	delete(d.pending, component)

	d.persist()

	return nil
}

// DetectRegressions evaluates a measurement against its component's
// baseline. Without a baseline the measurement is buffered for future
// baseline creation (cap 50, oldest dropped) and no alert is emitted.
// A zero-valued baseline average suppresses that ratio entirely.
func (d *Detector) DetectRegressions(m Measurement) []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	if m.Timestamp.IsZero() {
		m.Timestamp = d.now()
	}

	baseline, ok := d.baselines[m.Component]
	if !ok {
		buffer := append(d.pending[m.Component], m)
		if len(buffer) > pendingCap {
			buffer = buffer[len(buffer)-pendingCap:]
		}
		d.pending[m.Component] = buffer
		return []Alert{}
	}

	alerts := []Alert{}

	if baseline.AverageRenderTime > 0 {
		ratio := float64(m.RenderTime) / float64(baseline.AverageRenderTime)
		if ratio > renderThreshold {
			alerts = append(alerts, Alert{
				Type:        AlertRenderTime,
				Severity:    severityForRatio(ratio, renderThreshold),
				Component:   m.Component,
				Current:     float64(m.RenderTime) / float64(time.Millisecond),
				Baseline:    float64(baseline.AverageRenderTime) / float64(time.Millisecond),
				Degradation: (ratio - 1) * 100,
				Timestamp:   m.Timestamp,
			})
		}
	}

	if baseline.AverageMemoryUsage > 0 {
		ratio := m.MemoryUsage / baseline.AverageMemoryUsage
		if ratio > memoryThreshold {
			alerts = append(alerts, Alert{
				Type:        AlertMemoryUsage,
				Severity:    severityForRatio(ratio, memoryThreshold),
				Component:   m.Component,
				Current:     m.MemoryUsage,
				Baseline:    baseline.AverageMemoryUsage,
				Degradation: (ratio - 1) * 100,
				Timestamp:   m.Timestamp,
			})
		}
	}

	if m.MinCacheHitRate > 0 && m.CacheHitRate < m.MinCacheHitRate {
		gap := m.MinCacheHitRate - m.CacheHitRate
		alerts = append(alerts, Alert{
			Type:        AlertCachePerformance,
			Severity:    severityForGap(gap),
			Component:   m.Component,
			Current:     m.CacheHitRate,
			Baseline:    m.MinCacheHitRate,
			Degradation: gap,
			Timestamp:   m.Timestamp,
		})
	}

	for _, alert := range alerts {
		metrics.RegressionAlertsTotal.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()
	}

	d.recent = append(d.recent, alerts...)
	if len(d.recent) > recentCap {
		d.recent = d.recent[len(d.recent)-recentCap:]
	}

	return alerts
}

// Recent reports the most recent alerts (up to 100) as a report.
func (d *Detector) Recent() Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	alerts := make([]Alert, len(d.recent))
	copy(alerts, d.recent)
	return NewReport(alerts)
}

// Baselines returns a copy of the stored baselines.
func (d *Detector) Baselines() []Baseline {
	d.mu.Lock()
	defer d.mu.Unlock()

	baselines := make([]Baseline, 0, len(d.baselines))
	for _, baseline := range d.baselines {
		baselines = append(baselines, baseline)
	}
	return baselines
}

// Pending returns the number of buffered measurements for a component
// without a baseline.
func (d *Detector) Pending(component string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.pending[component])
}

// persist saves baselines best-effort. Callers hold the lock.
func (d *Detector) persist() {
	if d.store == nil {
		return
	}

	baselines := make([]Baseline, 0, len(d.baselines))
	for _, baseline := range d.baselines {
		baselines = append(baselines, baseline)
	}

	if err := d.store.Save(baselines); err != nil {
		log.Warn("baseline store persistence failure", "error", err)
	}
}

// NewReport summarizes alerts per severity.
func NewReport(alerts []Alert) Report {
	report := Report{Regressions: alerts}
	if report.Regressions == nil {
		report.Regressions = []Alert{}
	}

	for _, alert := range alerts {
		switch alert.Severity {
		case SeverityCritical:
			report.Summary.Critical++
		case SeverityHigh:
			report.Summary.High++
		case SeverityMedium:
			report.Summary.Medium++
		default:
			report.Summary.Low++
		}
	}

	return report
}

// ShouldFailBuild reports whether a regression report is severe enough
// to fail the build: any critical alert, or more than two high ones.
func ShouldFailBuild(report Report) bool {
	return report.Summary.Critical > 0 || report.Summary.High > 2
}

// severityForRatio tiers a degradation ratio against multiples of its
// threshold.
func severityForRatio(ratio, threshold float64) Severity {
	switch {
	case ratio >= threshold*3:
		return SeverityCritical
	case ratio >= threshold*2:
		return SeverityHigh
	case ratio >= threshold*1.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// severityForGap tiers a cache hit-rate shortfall in percentage points.
func severityForGap(gap float64) Severity {
	switch {
	case gap >= 30:
		return SeverityCritical
	case gap >= 20:
		return SeverityHigh
	case gap >= 10:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
