// Package pipeline orchestrates one optimized test run: discovery,
// cache consultation, parallel execution, and the quality trackers.
package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lithium-ci/lithium/internal/cache"
	"github.com/lithium-ci/lithium/internal/discover"
	"github.com/lithium-ci/lithium/internal/event"
	"github.com/lithium-ci/lithium/internal/metrics"
	"github.com/lithium-ci/lithium/internal/regression"
	"github.com/lithium-ci/lithium/internal/reliability"
	"github.com/lithium-ci/lithium/internal/schedule"
	"github.com/lithium-ci/lithium/pkg/log"
	"github.com/pkg/errors"
)

// Config parameterizes a Pipeline.
type Config struct {
	Suite     string
	Root      string
	Globs     []string
	Scheduler schedule.Config

	// CacheDisabled forces every test to execute.
	CacheDisabled bool

	// FailOnRegression fails the run when the regression report is
	// severe enough.
	FailOnRegression bool

	// MinCacheHitRate, when positive, is forwarded to regression
	// detection as the acceptable hit-rate floor in percent.
	MinCacheHitRate float64
}

// Deps are the pipeline's collaborators. Everything the pipeline
// touches is passed in here; there is no package-level state, so two
// pipelines in one process stay fully independent.
type Deps struct {
	Runner   schedule.Runner
	Cache    *cache.Cache
	Tracker  *reliability.Tracker
	Detector *regression.Detector
	History  *reliability.Store
	Bus      event.Bus
}

// Summary is the outcome of one pipeline run.
type Summary struct {
	RunID       uuid.UUID           `json:"runId"`
	Suite       string              `json:"suite"`
	BuildNumber int64               `json:"buildNumber"`
	TotalTests  int                 `json:"totalTests"`
	Passed      int                 `json:"passed"`
	Failed      int                 `json:"failed"`
	Cached      int                 `json:"cached"`
	Duration    time.Duration       `json:"duration"`
	CacheStats  cache.Stats         `json:"cacheStats"`
	Schedule    *schedule.Report    `json:"schedule"`
	Regressions regression.Report   `json:"regressions"`
	Reliability reliability.Metrics `json:"reliability"`
	FailBuild   bool                `json:"failBuild"`
}

// Pipeline wires discovery, caching, scheduling, and tracking into a
// single run loop.
type Pipeline struct {
	cfg  Config
	deps Deps
}

// New returns a pipeline over the given collaborators. Runner and
// Tracker are required; Cache, Detector, History, and Bus are optional.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Runner == nil {
		return nil, errors.New("pipeline requires a runner")
	}
	if deps.Tracker == nil {
		return nil, errors.New("pipeline requires a reliability tracker")
	}

	return &Pipeline{cfg: cfg, deps: deps}, nil
}

// Run executes one full pipeline pass and returns its summary. The
// returned error covers infrastructure failures only; test failures
// and regressions are reported through the summary.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()

	summary := &Summary{
		RunID:       uuid.New(),
		Suite:       p.cfg.Suite,
		BuildNumber: p.deps.Tracker.LastBuild() + 1,
	}

	p.publish(event.Event{Type: event.TypeRunStarted, RunID: summary.RunID})

	files, err := discover.NewFinder(p.cfg.Root, p.cfg.Globs).Find()
	if err != nil {
		p.finish(summary, schedule.StatusFailed, started)
		return nil, errors.Wrap(err, "test discovery failed")
	}

	log.Info("pipeline run starting",
		"suite", p.cfg.Suite,
		"build", summary.BuildNumber,
		"tests", len(files),
	)

	scheduler := schedule.New(p.cfg.Scheduler, p.deps.Runner)

	for _, file := range files {
		full := filepath.Join(p.cfg.Root, file)

		if outcome, ok := p.lookupCached(full); ok {
			p.recordCached(summary, file, outcome)
			continue
		}
		scheduler.AddTestJobs(full)
	}

	report, err := scheduler.ExecuteParallel(ctx)
	if err != nil {
		p.finish(summary, schedule.StatusFailed, started)
		return nil, errors.Wrap(err, "parallel execution failed")
	}
	summary.Schedule = report

	for _, result := range report.Results {
		p.recordExecuted(summary, result)
	}

	summary.TotalTests = summary.Passed + summary.Failed
	summary.Duration = time.Since(started)

	p.deps.Tracker.AddTestSuite(reliability.SuiteRecord{
		Suite:       p.cfg.Suite,
		BuildNumber: summary.BuildNumber,
		TotalTests:  summary.TotalTests,
		Passed:      summary.Passed,
		Failed:      summary.Failed,
		Duration:    summary.Duration,
	})
	if p.deps.History != nil {
		if err := p.deps.History.SaveSuite(reliability.SuiteRecord{
			Suite:       p.cfg.Suite,
			BuildNumber: summary.BuildNumber,
			Timestamp:   time.Now(),
			TotalTests:  summary.TotalTests,
			Passed:      summary.Passed,
			Failed:      summary.Failed,
			Duration:    summary.Duration,
		}); err != nil {
			log.Warn("suite history persistence failure", "error", err)
		}
	}

	if p.deps.Cache != nil {
		summary.CacheStats = p.deps.Cache.Stats()
	}
	summary.Reliability = p.deps.Tracker.CalculateReliability()
	summary.FailBuild = summary.Failed > 0 ||
		(p.cfg.FailOnRegression && regression.ShouldFailBuild(summary.Regressions))

	status := schedule.StatusPassed
	if summary.FailBuild {
		status = schedule.StatusFailed
	}
	p.finish(summary, status, started)

	log.Info("pipeline run finished",
		"suite", p.cfg.Suite,
		"build", summary.BuildNumber,
		"total", summary.TotalTests,
		"cached", summary.Cached,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)

	return summary, nil
}

// lookupCached consults the cache unless it is disabled.
func (p *Pipeline) lookupCached(path string) (cache.Outcome, bool) {
	if p.deps.Cache == nil || p.cfg.CacheDisabled {
		return cache.Outcome{}, false
	}
	return p.deps.Cache.GetCachedResult(path)
}

// recordCached counts a cache hit as a passed test without rerunning
// it. The tracker still sees a run so reliability windows stay honest.
func (p *Pipeline) recordCached(summary *Summary, file string, outcome cache.Outcome) {
	summary.Cached++
	summary.Passed++

	p.deps.Tracker.AddTestRun(reliability.TestRun{
		Name:        file,
		Status:      reliability.StatusPass,
		Duration:    outcome.Duration,
		BuildNumber: summary.BuildNumber,
		Metadata:    map[string]interface{}{"cached": true},
	})

	p.publish(event.Event{Type: event.TypeJobCached, RunID: summary.RunID, Test: file})
}

// recordExecuted fans one executed result out to the cache, the
// reliability tracker, durable history, and regression detection.
func (p *Pipeline) recordExecuted(summary *Summary, result schedule.Result) {
	name, err := filepath.Rel(p.cfg.Root, result.File)
	if err != nil || name == "" {
		name = result.File
	}
	name = filepath.ToSlash(name)

	status := reliability.StatusPass
	eventType := event.TypeJobCompleted
	if result.Status == schedule.StatusFailed {
		status = reliability.StatusFail
		eventType = event.TypeJobFailed
		summary.Failed++
	} else {
		summary.Passed++

		// Only passing outcomes are worth replaying; failures must
		// rerun until they pass.
		if p.deps.Cache != nil && !p.cfg.CacheDisabled {
			p.deps.Cache.CacheResult(result.File, cache.Outcome{
				Status:       result.Status,
				Duration:     result.Duration,
				TestCount:    result.TestCount,
				FailureCount: result.FailureCount,
			})
		}
	}

	run := reliability.TestRun{
		Name:        name,
		Status:      status,
		Duration:    result.Duration,
		BuildNumber: summary.BuildNumber,
		Error:       result.Error,
	}
	p.deps.Tracker.AddTestRun(run)
	if p.deps.History != nil {
		run.Timestamp = time.Now()
		if err := p.deps.History.SaveRun(run); err != nil {
			log.Warn("run history persistence failure", "error", err)
		}
	}

	p.publish(event.Event{Type: eventType, RunID: summary.RunID, Test: name})

	if p.deps.Detector != nil && result.Component != "" {
		alerts := p.deps.Detector.DetectRegressions(regression.Measurement{
			Component:       result.Component,
			RenderTime:      result.Duration,
			MemoryUsage:     result.MemoryUsage,
			CacheHitRate:    hitRate(summary),
			MinCacheHitRate: p.cfg.MinCacheHitRate,
		})
		summary.Regressions = regression.NewReport(append(summary.Regressions.Regressions, alerts...))

		for _, alert := range alerts {
			payload, _ := json.Marshal(alert)
			p.publish(event.Event{
				Type:    event.TypeRegressionAlert,
				RunID:   summary.RunID,
				Test:    name,
				Payload: payload,
			})
		}
	}
}

// finish emits the terminal event and run metrics.
func (p *Pipeline) finish(summary *Summary, status string, started time.Time) {
	eventType := event.TypeRunCompleted
	if status == schedule.StatusFailed {
		eventType = event.TypeRunFailed
	}
	p.publish(event.Event{Type: eventType, RunID: summary.RunID})

	metrics.PipelineRunsTotal.WithLabelValues(status).Inc()
	metrics.PipelineDurationSeconds.Observe(time.Since(started).Seconds())
}

func (p *Pipeline) publish(e event.Event) {
	if p.deps.Bus == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	p.deps.Bus.Publish(e)
}

// hitRate is the cumulative cache hit rate in percent for the current
// process, used as the cache health signal on regression measurements.
func hitRate(summary *Summary) float64 {
	attempts := summary.Passed + summary.Failed
	if attempts == 0 {
		return 100
	}
	return 100 * float64(summary.Cached) / float64(attempts)
}
