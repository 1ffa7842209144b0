package regression

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBaseline(t *testing.T, d *Detector, component string, render time.Duration, memory float64) {
	t.Helper()

	results := make([]Measurement, 10)
	for i := range results {
		results[i] = Measurement{Component: component, RenderTime: render, MemoryUsage: memory}
	}
	require.NoError(t, d.UpdateBaseline(component, results))
}

func TestRenderSeverityTiers(t *testing.T) {
	d := NewDetector("1.0.0")
	seedBaseline(t, d, "Header", 10*time.Millisecond, 0)

	cases := []struct {
		current  time.Duration
		severity Severity
	}{
		{15 * time.Millisecond, SeverityLow},      // ratio 1.5
		{20 * time.Millisecond, SeverityMedium},   // ratio 2.0
		{25 * time.Millisecond, SeverityHigh},     // ratio 2.5
		{40 * time.Millisecond, SeverityCritical}, // ratio 4.0
	}

	for _, tc := range cases {
		alerts := d.DetectRegressions(Measurement{Component: "Header", RenderTime: tc.current})
		require.Len(t, alerts, 1, "current %v", tc.current)

		assert.Equal(t, AlertRenderTime, alerts[0].Type)
		assert.Equal(t, tc.severity, alerts[0].Severity)
		assert.InDelta(t, float64(tc.current)/float64(10*time.Millisecond)*100-100, alerts[0].Degradation, 0.0001)
	}
}

func TestRenderWithinThresholdIsQuiet(t *testing.T) {
	d := NewDetector("1.0.0")
	seedBaseline(t, d, "Header", 10*time.Millisecond, 0)

	alerts := d.DetectRegressions(Measurement{Component: "Header", RenderTime: 11 * time.Millisecond})
	assert.Empty(t, alerts)
}

func TestMemoryThreshold(t *testing.T) {
	d := NewDetector("1.0.0")
	seedBaseline(t, d, "Grid", 0, 100)

	assert.Empty(t, d.DetectRegressions(Measurement{Component: "Grid", MemoryUsage: 140}))

	alerts := d.DetectRegressions(Measurement{Component: "Grid", MemoryUsage: 160})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertMemoryUsage, alerts[0].Type)
	assert.Equal(t, SeverityLow, alerts[0].Severity)
	assert.InDelta(t, 60.0, alerts[0].Degradation, 0.0001)
}

func TestCacheHitRateSeverityTiers(t *testing.T) {
	d := NewDetector("1.0.0")
	seedBaseline(t, d, "Search", 10*time.Millisecond, 0)

	cases := []struct {
		current, min float64
		severity     Severity
	}{
		{85, 90, SeverityLow},
		{78, 90, SeverityMedium},
		{65, 90, SeverityHigh},
		{55, 90, SeverityCritical},
	}

	for _, tc := range cases {
		alerts := d.DetectRegressions(Measurement{
			Component:       "Search",
			RenderTime:      10 * time.Millisecond,
			CacheHitRate:    tc.current,
			MinCacheHitRate: tc.min,
		})
		require.Len(t, alerts, 1, "hit rate %v", tc.current)

		assert.Equal(t, AlertCachePerformance, alerts[0].Type)
		assert.Equal(t, tc.severity, alerts[0].Severity)
		assert.InDelta(t, tc.min-tc.current, alerts[0].Degradation, 0.0001)
	}
}

func TestNoBaselineBuffersInsteadOfAlerting(t *testing.T) {
	d := NewDetector("1.0.0")

	alerts := d.DetectRegressions(Measurement{Component: "Fresh", RenderTime: time.Hour})
	assert.Empty(t, alerts)
	assert.Equal(t, 1, d.Pending("Fresh"))

	for i := 0; i < 60; i++ {
		d.DetectRegressions(Measurement{Component: "Fresh", RenderTime: time.Second})
	}
	assert.Equal(t, 50, d.Pending("Fresh"))
}

func TestZeroBaselineSuppressesRatio(t *testing.T) {
	d := NewDetector("1.0.0")
	seedBaseline(t, d, "Stub", 0, 0)

	alerts := d.DetectRegressions(Measurement{Component: "Stub", RenderTime: time.Hour, MemoryUsage: 1e9})
	assert.Empty(t, alerts)
}

func TestUpdateBaselineRequiresTenResults(t *testing.T) {
	d := NewDetector("1.0.0")

	err := d.UpdateBaseline("Header", make([]Measurement, 9))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 10")
}

func TestUpdateBaselineOverwritesAndClearsPending(t *testing.T) {
	d := NewDetector("2.1.0")

	d.DetectRegressions(Measurement{Component: "Header", RenderTime: time.Millisecond})
	require.Equal(t, 1, d.Pending("Header"))

	results := make([]Measurement, 10)
	for i := range results {
		results[i] = Measurement{RenderTime: time.Duration(i+1) * time.Millisecond, MemoryUsage: float64(i + 1)}
	}
	require.NoError(t, d.UpdateBaseline("Header", results))

	assert.Zero(t, d.Pending("Header"))

	baselines := d.Baselines()
	require.Len(t, baselines, 1)
	assert.Equal(t, 5500*time.Microsecond, baselines[0].AverageRenderTime)
	assert.InDelta(t, 5.5, baselines[0].AverageMemoryUsage, 0.0001)
	assert.Equal(t, 10, baselines[0].SampleCount)
	assert.Equal(t, "2.1.0", baselines[0].Version)

	seedBaseline(t, d, "Header", 20*time.Millisecond, 0)
	baselines = d.Baselines()
	require.Len(t, baselines, 1)
	assert.Equal(t, 20*time.Millisecond, baselines[0].AverageRenderTime)
}

func TestShouldFailBuild(t *testing.T) {
	critical := NewReport([]Alert{{Severity: SeverityCritical}})
	assert.True(t, ShouldFailBuild(critical))

	threeHigh := NewReport([]Alert{
		{Severity: SeverityHigh}, {Severity: SeverityHigh}, {Severity: SeverityHigh},
	})
	assert.True(t, ShouldFailBuild(threeHigh))

	tolerable := NewReport([]Alert{
		{Severity: SeverityHigh}, {Severity: SeverityHigh},
		{Severity: SeverityMedium}, {Severity: SeverityLow},
	})
	assert.False(t, ShouldFailBuild(tolerable))
	assert.Equal(t, Summary{High: 2, Medium: 1, Low: 1}, tolerable.Summary)
}

func TestBaselinePersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baselines.json")

	d := NewDetector("1.0.0").WithStore(NewStore(path))
	seedBaseline(t, d, "Header", 12*time.Millisecond, 256)

	reloaded := NewDetector("1.0.0").WithStore(NewStore(path))
	baselines := reloaded.Baselines()
	require.Len(t, baselines, 1)

	assert.Equal(t, "Header", baselines[0].Component)
	assert.Equal(t, 12*time.Millisecond, baselines[0].AverageRenderTime)
	assert.InDelta(t, 256.0, baselines[0].AverageMemoryUsage, 0.0001)

	alerts := reloaded.DetectRegressions(Measurement{Component: "Header", RenderTime: 48 * time.Millisecond})
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
}

func TestCorruptBaselineStoreStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baselines.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	d := NewDetector("1.0.0").WithStore(NewStore(path))
	assert.Empty(t, d.Baselines())
}
