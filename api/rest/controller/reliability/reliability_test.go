package reliability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/lithium-ci/lithium/internal/reliability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededTracker() *reliability.Tracker {
	tracker := reliability.NewTracker()
	for build := 1; build <= 10; build++ {
		tracker.AddTestSuite(reliability.SuiteRecord{
			Suite:       "web",
			BuildNumber: int64(build),
			TotalTests:  10,
			Passed:      9,
			Failed:      1,
		})
	}
	return tracker
}

func invoke(t *testing.T, handler echo.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func TestGetReturnsMetrics(t *testing.T) {
	ctrl := New(seededTracker())

	rec := invoke(t, ctrl.Get, "/v1/reliability")
	assert.Equal(t, http.StatusOK, rec.Code)

	var metrics reliability.Metrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metrics))
	assert.InDelta(t, 90.0, metrics.OverallReliability, 0.0001)
	assert.Equal(t, 10, metrics.TotalBuilds)
}

func TestStatsParsesDays(t *testing.T) {
	ctrl := New(seededTracker())

	rec := invoke(t, ctrl.Stats, "/v1/reliability/stats?days=30")
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats reliability.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 10, stats.Builds)
}

func TestStatsRejectsInvalidDays(t *testing.T) {
	ctrl := New(seededTracker())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/reliability/stats?days=nope", nil)
	rec := httptest.NewRecorder()

	err := ctrl.Stats(e.NewContext(req, rec))
	require.Error(t, err)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestFlakyEmptyListIsNotNull(t *testing.T) {
	ctrl := New(reliability.NewTracker())

	rec := invoke(t, ctrl.Flaky, "/v1/flaky")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
