package reliability

import (
	"sort"
	"time"

	"github.com/lithium-ci/lithium/internal/metrics"
)

const (
	minRunsForFlaky    = 5
	flakyFailureRate   = 0.01
	flipRateThreshold  = 0.30
	clusterWindow      = 24 * time.Hour
	timingSlowdownMult = 2.0
)

// Pattern classifies the failure shape of a flaky test.
type Pattern string

const (
	PatternIntermittent Pattern = "intermittent"
	PatternTiming       Pattern = "timing"
	PatternEnvironment  Pattern = "environment"
	PatternUnknown      Pattern = "unknown"
)

// FlakyTest is a derived classification, recomputed per query.
type FlakyTest struct {
	Name        string    `json:"name"`
	FailureRate float64   `json:"failureRate"`
	Pattern     Pattern   `json:"pattern"`
	LastFailure time.Time `json:"lastFailure"`
	Runs        int       `json:"runs"`
}

// detectFlakyTests restricts runs to the 20 most recent builds, groups
// them by test name, and flags tests that both passed and failed with a
// failure rate above 1%. Callers hold the lock.
func (t *Tracker) detectFlakyTests() []FlakyTest {
	recent := t.recentRuns(flakyBuildWindow)

	groups := map[string][]TestRun{}
	for _, run := range recent {
		groups[run.Name] = append(groups[run.Name], run)
	}

	flaky := []FlakyTest{}
	for name, runs := range groups {
		if len(runs) < minRunsForFlaky {
			continue
		}

		var passes, failures int
		var lastFailure time.Time
		for _, run := range runs {
			switch run.Status {
			case StatusPass:
				passes++
			case StatusFail:
				failures++
				if run.Timestamp.After(lastFailure) {
					lastFailure = run.Timestamp
				}
			}
		}

		rate := float64(failures) / float64(len(runs))
		if passes == 0 || failures == 0 || rate <= flakyFailureRate {
			continue
		}

		flaky = append(flaky, FlakyTest{
			Name:        name,
			FailureRate: rate,
			Pattern:     classifyPattern(runs),
			LastFailure: lastFailure,
			Runs:        len(runs),
		})
	}

	sort.SliceStable(flaky, func(i, j int) bool {
		if flaky[i].FailureRate != flaky[j].FailureRate {
			return flaky[i].FailureRate > flaky[j].FailureRate
		}
		return flaky[i].Name < flaky[j].Name
	})

	metrics.FlakyTestsDetected.Set(float64(len(flaky)))

	return flaky
}

// recentRuns returns the runs belonging to the n most recent distinct
// builds, ordered by timestamp. Callers hold the lock.
func (t *Tracker) recentRuns(n int) []TestRun {
	builds := map[int64]struct{}{}
	for _, run := range t.runs {
		builds[run.BuildNumber] = struct{}{}
	}

	ordered := make([]int64, 0, len(builds))
	for build := range builds {
		ordered = append(ordered, build)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] > ordered[j] })

	if len(ordered) > n {
		ordered = ordered[:n]
	}
	included := map[int64]struct{}{}
	for _, build := range ordered {
		included[build] = struct{}{}
	}

	recent := []TestRun{}
	for _, run := range t.runs {
		if _, ok := included[run.BuildNumber]; ok {
			recent = append(recent, run)
		}
	}

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Timestamp.Before(recent[j].Timestamp)
	})

	return recent
}

// classifyPattern applies the first matching heuristic:
// timing, then intermittent, then environment, else unknown.
func classifyPattern(runs []TestRun) Pattern {
	if isTimingPattern(runs) {
		return PatternTiming
	}
	if isIntermittentPattern(runs) {
		return PatternIntermittent
	}
	if isEnvironmentPattern(runs) {
		return PatternEnvironment
	}
	return PatternUnknown
}

// isTimingPattern holds when failing runs take more than twice as long
// as passing runs on average.
func isTimingPattern(runs []TestRun) bool {
	var passTotal, failTotal time.Duration
	var passes, failures int

	for _, run := range runs {
		switch run.Status {
		case StatusPass:
			passTotal += run.Duration
			passes++
		case StatusFail:
			failTotal += run.Duration
			failures++
		}
	}

	if passes == 0 || failures == 0 {
		return false
	}

	avgPass := float64(passTotal) / float64(passes)
	avgFail := float64(failTotal) / float64(failures)

	return avgPass > 0 && avgFail > timingSlowdownMult*avgPass
}

// isIntermittentPattern holds when more than 30% of consecutive runs
// change status.
func isIntermittentPattern(runs []TestRun) bool {
	if len(runs) < 2 {
		return false
	}

	flips := 0
	for i := 1; i < len(runs); i++ {
		if runs[i].Status != runs[i-1].Status {
			flips++
		}
	}

	return float64(flips)/float64(len(runs)-1) > flipRateThreshold
}

// isEnvironmentPattern holds when some 24-hour window contains at least
// half of the test's failures.
func isEnvironmentPattern(runs []TestRun) bool {
	failures := []time.Time{}
	for _, run := range runs {
		if run.Status == StatusFail {
			failures = append(failures, run.Timestamp)
		}
	}

	if len(failures) == 0 {
		return false
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].Before(failures[j]) })

	for i := range failures {
		count := 0
		for j := i; j < len(failures); j++ {
			if failures[j].Sub(failures[i]) <= clusterWindow {
				count++
			}
		}
		if 2*count >= len(failures) {
			return true
		}
	}

	return false
}
