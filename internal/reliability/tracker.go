// Package reliability ingests per-test and per-suite outcomes across
// builds and computes rolling-window pass-rate trends and flaky-test
// classifications.
package reliability

import (
	"sort"
	"sync"
	"time"
)

// Status enumerates test run outcomes.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
	StatusTodo Status = "todo"
)

const (
	maxBuildHistory   = 100
	reliabilityWindow = 50
	flakyBuildWindow  = 20
)

// TestRun is a single test execution within a build.
type TestRun struct {
	Name        string                 `json:"name"`
	Status      Status                 `json:"status"`
	Duration    time.Duration          `json:"duration"`
	BuildNumber int64                  `json:"buildNumber"`
	Timestamp   time.Time              `json:"timestamp"`
	Error       string                 `json:"error,omitempty"`
	RetryCount  int                    `json:"retryCount"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SuiteRecord is the per-build suite summary.
type SuiteRecord struct {
	Suite       string        `json:"suite"`
	BuildNumber int64         `json:"buildNumber"`
	Timestamp   time.Time     `json:"timestamp"`
	TotalTests  int           `json:"totalTests"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Duration    time.Duration `json:"duration"`
}

// Metrics is the reliability payload served to dashboards.
type Metrics struct {
	OverallReliability float64     `json:"overallReliability"`
	Trend              []float64   `json:"trend"`
	FlakyTests         []FlakyTest `json:"flakyTests"`
	BuildWindow        int         `json:"buildWindow"`
	TotalBuilds        int         `json:"totalBuilds"`
}

// Stats summarizes per-build pass rates over a calendar period.
type Stats struct {
	AverageReliability float64 `json:"averageReliability"`
	MinReliability     float64 `json:"minReliability"`
	MaxReliability     float64 `json:"maxReliability"`
	Builds             int     `json:"builds"`
}

// Tracker owns the rolling run and suite history. It is an explicit
// object threaded through the pipeline rather than process-global
// state, so independent pipelines never share windows.
type Tracker struct {
	mu        sync.Mutex
	runs      []TestRun
	suites    []SuiteRecord
	nextBuild int64
	now       func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// AddTestRun ingests a run. Ingestion never fails: a missing build
// number is defaulted to the next monotonic build, a missing timestamp
// to the current time. History beyond the last 100 builds is pruned.
func (t *Tracker) AddTestRun(run TestRun) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if run.BuildNumber <= 0 {
		run.BuildNumber = t.defaultBuild()
	} else {
		t.observeBuild(run.BuildNumber)
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = t.now()
	}

	t.runs = append(t.runs, run)
	t.prune()
}

// AddTestSuite ingests a per-build suite record with the same
// defaulting and pruning rules as AddTestRun.
func (t *Tracker) AddTestSuite(record SuiteRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if record.BuildNumber <= 0 {
		record.BuildNumber = t.defaultBuild()
	} else {
		t.observeBuild(record.BuildNumber)
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = t.now()
	}

	t.suites = append(t.suites, record)
	t.prune()
}

// LastBuild returns the highest build number observed so far.
func (t *Tracker) LastBuild() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.nextBuild
}

// CalculateReliability computes the overall pass rate and per-build
// trend over the 50 most recent suite records, plus the current flaky
// test list.
func (t *Tracker) CalculateReliability() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	window := t.recentSuites(reliabilityWindow)

	var passed, total int
	for _, record := range window {
		passed += record.Passed
		total += record.TotalTests
	}

	overall := 0.0
	if total > 0 {
		overall = 100 * float64(passed) / float64(total)
	}

	// trend runs oldest to newest
	trend := make([]float64, 0, len(window))
	for i := len(window) - 1; i >= 0; i-- {
		record := window[i]
		rate := 0.0
		if record.TotalTests > 0 {
			rate = 100 * float64(record.Passed) / float64(record.TotalTests)
		}
		trend = append(trend, rate)
	}

	return Metrics{
		OverallReliability: overall,
		Trend:              trend,
		FlakyTests:         t.detectFlakyTests(),
		BuildWindow:        len(window),
		TotalBuilds:        len(t.suites),
	}
}

// DetectFlakyTests classifies tests with inconsistent outcomes in the
// 20 most recent builds.
func (t *Tracker) DetectFlakyTests() []FlakyTest {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.detectFlakyTests()
}

// GetReliabilityStats reports average, minimum, and maximum per-build
// pass rate over the given number of calendar days.
func (t *Tracker) GetReliabilityStats(days int) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().AddDate(0, 0, -days)

	var rates []float64
	for _, record := range t.suites {
		if record.Timestamp.Before(cutoff) || record.TotalTests == 0 {
			continue
		}
		rates = append(rates, 100*float64(record.Passed)/float64(record.TotalTests))
	}

	if len(rates) == 0 {
		return Stats{}
	}

	stats := Stats{
		MinReliability: rates[0],
		MaxReliability: rates[0],
		Builds:         len(rates),
	}
	sum := 0.0
	for _, rate := range rates {
		sum += rate
		if rate < stats.MinReliability {
			stats.MinReliability = rate
		}
		if rate > stats.MaxReliability {
			stats.MaxReliability = rate
		}
	}
	stats.AverageReliability = sum / float64(len(rates))

	return stats
}

// recentSuites returns up to n suite records, most recent build first.
// Callers hold the lock.
func (t *Tracker) recentSuites(n int) []SuiteRecord {
	sorted := make([]SuiteRecord, len(t.suites))
	copy(sorted, t.suites)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BuildNumber > sorted[j].BuildNumber
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// defaultBuild hands out a monotonically increasing build number for
// records ingested without one. Callers hold the lock.
func (t *Tracker) defaultBuild() int64 {
	t.nextBuild++
	return t.nextBuild
}

// observeBuild keeps the monotonic counter ahead of explicit build
// numbers. Callers hold the lock.
func (t *Tracker) observeBuild(build int64) {
	if build > t.nextBuild {
		t.nextBuild = build
	}
}

// prune drops runs and suites older than the most recent 100 distinct
// builds. Callers hold the lock.
func (t *Tracker) prune() {
	builds := map[int64]struct{}{}
	for _, run := range t.runs {
		builds[run.BuildNumber] = struct{}{}
	}
	for _, record := range t.suites {
		builds[record.BuildNumber] = struct{}{}
	}

	if len(builds) <= maxBuildHistory {
		return
	}

	ordered := make([]int64, 0, len(builds))
	for build := range builds {
		ordered = append(ordered, build)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] > ordered[j] })
	cutoff := ordered[maxBuildHistory-1]

	kept := t.runs[:0]
	for _, run := range t.runs {
		if run.BuildNumber >= cutoff {
			kept = append(kept, run)
		}
	}
	t.runs = kept

	keptSuites := t.suites[:0]
	for _, record := range t.suites {
		if record.BuildNumber >= cutoff {
			keptSuites = append(keptSuites, record)
		}
	}
	t.suites = keptSuites
}
