package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lithium-ci/lithium/internal/cache"
	"github.com/lithium-ci/lithium/internal/event"
	"github.com/lithium-ci/lithium/internal/regression"
	"github.com/lithium-ci/lithium/internal/reliability"
	"github.com/lithium-ci/lithium/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string

	failSuffix string
	component  string
}

func (f *fakeRunner) Run(_ context.Context, job schedule.Job) schedule.Result {
	f.mu.Lock()
	f.calls = append(f.calls, job.File)
	f.mu.Unlock()

	result := schedule.Result{
		JobID:     job.ID,
		File:      job.File,
		Status:    schedule.StatusPassed,
		Duration:  20 * time.Millisecond,
		TestCount: 1,
	}
	if f.failSuffix != "" && strings.HasSuffix(job.File, f.failSuffix) {
		result.Status = schedule.StatusFailed
		result.FailureCount = 1
		result.Error = "assertion failed"
	}
	if f.component != "" {
		result.Component = f.component
		result.Duration = 40 * time.Millisecond
	}
	return result
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func writeTestTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, file := range files {
		full := filepath.Join(root, filepath.FromSlash(file))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("export {}\n"), 0o644))
	}
}

func newPipeline(t *testing.T, cfg Config, deps Deps) *Pipeline {
	t.Helper()
	p, err := New(cfg, deps)
	require.NoError(t, err)
	return p
}

func TestRunExecutesDiscoveredTests(t *testing.T) {
	root := t.TempDir()
	writeTestTree(t, root, "src/a.test.js", "src/b.test.js", "src/broken.test.js")

	runner := &fakeRunner{failSuffix: "broken.test.js"}
	tracker := reliability.NewTracker()

	p := newPipeline(t, Config{
		Suite: "web",
		Root:  root,
		Globs: []string{"**/*.test.js"},
	}, Deps{Runner: runner, Tracker: tracker})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.BuildNumber)
	assert.Equal(t, 3, summary.TotalTests)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, summary.Cached)
	assert.True(t, summary.FailBuild)
	assert.Equal(t, 3, runner.callCount())
	require.NotNil(t, summary.Schedule)
	assert.Equal(t, 3, summary.Schedule.TotalTests)

	metrics := tracker.CalculateReliability()
	assert.Equal(t, 1, metrics.TotalBuilds)
	assert.InDelta(t, 100.0*2/3, metrics.OverallReliability, 0.0001)
}

func TestSecondRunReusesCachedResults(t *testing.T) {
	root := t.TempDir()
	writeTestTree(t, root, "src/a.test.js", "src/b.test.js")

	runner := &fakeRunner{}
	store := cache.New(cache.Config{
		Dir:         t.TempDir(),
		Environment: cache.CurrentEnvironment("1.0.0"),
	})

	p := newPipeline(t, Config{
		Suite: "web",
		Root:  root,
		Globs: []string{"**/*.test.js"},
	}, Deps{Runner: runner, Tracker: reliability.NewTracker(), Cache: store})

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, first.Cached)
	assert.Equal(t, 2, runner.callCount())

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Cached)
	assert.Equal(t, 2, second.Passed)
	assert.Equal(t, int64(2), second.BuildNumber)
	assert.False(t, second.FailBuild)

	// cache hits never reach the runner
	assert.Equal(t, 2, runner.callCount())
}

func TestCacheDisabledForcesExecution(t *testing.T) {
	root := t.TempDir()
	writeTestTree(t, root, "src/a.test.js")

	runner := &fakeRunner{}
	store := cache.New(cache.Config{
		Dir:         t.TempDir(),
		Environment: cache.CurrentEnvironment("1.0.0"),
	})

	p := newPipeline(t, Config{
		Suite:         "web",
		Root:          root,
		Globs:         []string{"**/*.test.js"},
		CacheDisabled: true,
	}, Deps{Runner: runner, Tracker: reliability.NewTracker(), Cache: store})

	for i := 0; i < 2; i++ {
		_, err := p.Run(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 2, runner.callCount())
}

func TestRegressionAlertsReachSummaryAndBus(t *testing.T) {
	root := t.TempDir()
	writeTestTree(t, root, "src/header.test.js")

	detector := regression.NewDetector("1.0.0")
	baseline := make([]regression.Measurement, 10)
	for i := range baseline {
		baseline[i] = regression.Measurement{RenderTime: 10 * time.Millisecond}
	}
	require.NoError(t, detector.UpdateBaseline("Header", baseline))

	bus := event.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := bus.Subscribe(ctx, event.Filter{Types: []event.Type{event.TypeRegressionAlert}})
	require.NoError(t, err)

	runner := &fakeRunner{component: "Header"}

	p := newPipeline(t, Config{
		Suite:            "web",
		Root:             root,
		Globs:            []string{"**/*.test.js"},
		FailOnRegression: true,
	}, Deps{
		Runner:   runner,
		Tracker:  reliability.NewTracker(),
		Detector: detector,
		Bus:      bus,
	})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	// 40ms against a 10ms baseline is a 4x critical regression
	require.Len(t, summary.Regressions.Regressions, 1)
	assert.Equal(t, regression.SeverityCritical, summary.Regressions.Regressions[0].Severity)
	assert.Equal(t, 1, summary.Regressions.Summary.Critical)
	assert.True(t, summary.FailBuild)

	select {
	case e := <-events:
		assert.Equal(t, event.TypeRegressionAlert, e.Type)
		assert.Equal(t, summary.RunID, e.RunID)
	case <-time.After(time.Second):
		t.Fatal("regression alert event not published")
	}
}

func TestRunEmitsLifecycleEvents(t *testing.T) {
	root := t.TempDir()
	writeTestTree(t, root, "src/a.test.js")

	bus := event.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := bus.Subscribe(ctx, event.Filter{})
	require.NoError(t, err)

	p := newPipeline(t, Config{
		Suite: "web",
		Root:  root,
		Globs: []string{"**/*.test.js"},
	}, Deps{Runner: &fakeRunner{}, Tracker: reliability.NewTracker(), Bus: bus})

	_, err = p.Run(context.Background())
	require.NoError(t, err)

	seen := map[event.Type]bool{}
	for {
		select {
		case e := <-events:
			seen[e.Type] = true
		default:
			assert.True(t, seen[event.TypeRunStarted])
			assert.True(t, seen[event.TypeJobCompleted])
			assert.True(t, seen[event.TypeRunCompleted])
			return
		}
	}
}

func TestMissingRunnerRejected(t *testing.T) {
	_, err := New(Config{}, Deps{Tracker: reliability.NewTracker()})
	assert.Error(t, err)
}
