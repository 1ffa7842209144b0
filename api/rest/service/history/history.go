package history

import (
	"context"
	"time"

	"github.com/lithium-ci/lithium/internal/models"
	"gorm.io/gorm"
)

// HistoryResponse is the top-level test history payload.
type HistoryResponse struct {
	Tests        TestStats     `json:"tests"`
	TopFailing   []FailingTest `json:"top_failing"`
	SlowestTests []SlowTest    `json:"slowest_tests"`
}

// TestStats contains aggregate test run statistics.
type TestStats struct {
	TotalRuns          int64   `json:"total_runs"`
	RecentRuns         int64   `json:"recent_runs"`
	PassRate           float64 `json:"pass_rate"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// FailingTest describes a frequently failing test.
type FailingTest struct {
	Name         string     `json:"name"`
	FailureCount int64      `json:"failure_count"`
	LastFailure  *time.Time `json:"last_failure"`
}

// SlowTest describes a test with high average duration.
type SlowTest struct {
	Name               string  `json:"name"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// Service provides history queries over the persisted run records.
type Service struct {
	ctx context.Context
	db  *gorm.DB
}

// New creates a Service over the given database handle.
func New(ctx context.Context, db *gorm.DB) *Service {
	return &Service{ctx: ctx, db: db}
}

// Get computes aggregate statistics from the test run history.
func (s *Service) Get() (*HistoryResponse, error) {
	resp := &HistoryResponse{}

	if err := s.db.WithContext(s.ctx).Model(&models.TestRunRecord{}).
		Count(&resp.Tests.TotalRuns).Error; err != nil {
		return nil, err
	}

	// Recent runs (last 24 hours)
	since := time.Now().UTC().Add(-24 * time.Hour)
	s.db.WithContext(s.ctx).Model(&models.TestRunRecord{}).
		Where("timestamp >= ?", since).
		Count(&resp.Tests.RecentRuns)

	var totalCompleted, totalPassed int64
	s.db.WithContext(s.ctx).Model(&models.TestRunRecord{}).
		Where("status IN ?", []string{"pass", "fail"}).
		Count(&totalCompleted)
	s.db.WithContext(s.ctx).Model(&models.TestRunRecord{}).
		Where("status = ?", "pass").
		Count(&totalPassed)
	if totalCompleted > 0 {
		resp.Tests.PassRate = float64(totalPassed) / float64(totalCompleted)
	}

	var avgResult struct{ Avg float64 }
	s.db.WithContext(s.ctx).Model(&models.TestRunRecord{}).
		Select("AVG(duration_ms) / 1000.0 as avg").
		Scan(&avgResult)
	resp.Tests.AvgDurationSeconds = avgResult.Avg

	// Top failing tests (up to 5)
	type failRow struct {
		TestName     string
		FailureCount int64
		LastFailure  *time.Time
	}
	var failRows []failRow
	s.db.WithContext(s.ctx).Model(&models.TestRunRecord{}).
		Select("test_name, COUNT(*) as failure_count, MAX(timestamp) as last_failure").
		Where("status = ?", "fail").
		Group("test_name").
		Order("failure_count DESC").
		Limit(5).
		Scan(&failRows)

	resp.TopFailing = make([]FailingTest, 0, len(failRows))
	for _, row := range failRows {
		resp.TopFailing = append(resp.TopFailing, FailingTest{
			Name:         row.TestName,
			FailureCount: row.FailureCount,
			LastFailure:  row.LastFailure,
		})
	}

	// Slowest tests (up to 5)
	type slowRow struct {
		TestName string
		Avg      float64
	}
	var slowRows []slowRow
	s.db.WithContext(s.ctx).Model(&models.TestRunRecord{}).
		Select("test_name, AVG(duration_ms) / 1000.0 as avg").
		Group("test_name").
		Order("avg DESC").
		Limit(5).
		Scan(&slowRows)

	resp.SlowestTests = make([]SlowTest, 0, len(slowRows))
	for _, row := range slowRows {
		resp.SlowestTests = append(resp.SlowestTests, SlowTest{
			Name:               row.TestName,
			AvgDurationSeconds: row.Avg,
		})
	}

	return resp, nil
}
